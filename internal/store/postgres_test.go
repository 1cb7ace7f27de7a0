package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var pgSnapshotRowColumns = []string{
	"id", "snapshot_date", "country_key", "country_name",
	"final_score", "overall_change",
	"exchange_score", "exchange_change", "exchange_rate",
	"flight_score", "flight_change", "flight_cost",
	"col_score", "col_change", "col_amount",
	"badges", "created_at",
	"data_source", "data_quality_score",
	"exchange_source", "flight_source", "col_source",
}

func strPtr(s string) *string { return &s }

// anySaveSnapshotArgs matches SaveSnapshot's 20 bind arguments without
// asserting their values; pgxmock treats a missing WithArgs as "expect
// zero arguments".
func anySaveSnapshotArgs() []any {
	args := make([]any, 20)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func pgSnapshotRow() *pgxmock.Rows {
	return pgxmock.NewRows(pgSnapshotRowColumns).AddRow(
		int64(1), "2026-08-30", "japan", "Japan",
		76.2, 12.5,
		70.0, 20.0, 4.52,
		83.4, 30.0, 7000.0,
		78.0, 20.0, 1200.0,
		strPtr(`["HOT DEAL"]`), time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
		"live_api", 92.5,
		"live_api", "cache", "baseline",
	)
}

func TestPostgresStore_SaveSnapshot_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO daily_snapshots .* ON CONFLICT \(snapshot_date, country_key\) DO UPDATE SET`).
		WithArgs(anySaveSnapshotArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap := &Snapshot{
		SnapshotDate: "2026-08-30",
		CountryKey:   "japan",
		CountryName:  "Japan",
		FinalScore:   76.2,
		Badges:       []string{"HOT DEAL"},
		DataSource:   "live_api",
	}
	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_DefaultsDate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO daily_snapshots`).
		WithArgs(anySaveSnapshotArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap := &Snapshot{CountryKey: "japan", CountryName: "Japan"}
	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), snap.SnapshotDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Latest(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM daily_snapshots\s+WHERE country_key = \$1\s+ORDER BY snapshot_date DESC\s+LIMIT 1`).
		WithArgs("japan").
		WillReturnRows(pgSnapshotRow())

	snap, err := s.Latest(context.Background(), "japan")
	require.NoError(t, err)
	assert.Equal(t, "japan", snap.CountryKey)
	assert.InDelta(t, 76.2, snap.FinalScore, 0.001)
	assert.Equal(t, []string{"HOT DEAL"}, snap.Badges)
	assert.Equal(t, "cache", snap.FlightSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Latest_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM daily_snapshots`).
		WithArgs("atlantis").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Latest(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM daily_snapshots\s+WHERE snapshot_date >= CURRENT_DATE - \$1::int\s+AND country_key = \$2`).
		WithArgs(7, "japan").
		WillReturnRows(pgSnapshotRow())

	snaps, err := s.History(context.Background(), HistoryFilter{CountryKey: "japan", Days: 7})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "2026-08-30", snaps[0].SnapshotDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History_DefaultWindowAndLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(pgSnapshotRowColumns)
	for i, key := range []string{"japan", "vietnam", "mexico"} {
		rows.AddRow(
			int64(i+1), "2026-08-30", key, key,
			80.0-float64(i), 0.0,
			0.0, 0.0, 0.0,
			0.0, 0.0, 0.0,
			0.0, 0.0, 0.0,
			strPtr(`[]`), time.Now().UTC(),
			"baseline", 40.0,
			"baseline", "baseline", "baseline",
		)
	}
	mock.ExpectQuery(`FROM daily_snapshots\s+WHERE snapshot_date >= CURRENT_DATE - \$1::int`).
		WithArgs(7).
		WillReturnRows(rows)

	snaps, err := s.History(context.Background(), HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ScoreTrend(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"final_score"}).
		AddRow(60.0).AddRow(70.0).AddRow(80.0)
	mock.ExpectQuery(`SELECT final_score FROM daily_snapshots`).
		WithArgs("japan", 30).
		WillReturnRows(rows)

	scores, err := s.ScoreTrend(context.Background(), "japan", 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 70, 80}, scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Trend(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"snapshot_date", "final_score", "exchange_rate", "flight_cost", "col_amount"}).
		AddRow("2026-08-30", 76.2, 4.52, 7000.0, 1200.0)
	mock.ExpectQuery(`SELECT snapshot_date::text, final_score, exchange_rate, flight_cost, col_amount`).
		WithArgs("japan", 30).
		WillReturnRows(rows)

	points, err := s.Trend(context.Background(), "japan", 30)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 4.52, points[0].ExchangeRate, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QualityStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"avg", "min", "max", "total", "live_api", "cache", "stale_cache", "baseline", "mock",
	}).AddRow(67.5, 40.0, 95.0, 2, 1, 0, 0, 1, 0)
	mock.ExpectQuery(`COUNT\(\*\) FILTER \(WHERE data_source = 'live_api'\)`).
		WithArgs(30).
		WillReturnRows(rows)

	stats, err := s.QualityStats(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSnapshots)
	assert.InDelta(t, 67.5, stats.AvgQuality, 0.001)
	assert.Equal(t, 1, stats.SourceDistribution["live_api"])
	assert.Equal(t, 1, stats.SourceDistribution["baseline"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Cleanup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM daily_snapshots WHERE snapshot_date < CURRENT_DATE - \$1::int`).
		WithArgs(365).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	deleted, err := s.Cleanup(context.Background(), 365)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS daily_snapshots`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
