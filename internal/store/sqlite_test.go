package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testSnapshot(date, key string, score float64) *Snapshot {
	return &Snapshot{
		SnapshotDate:     date,
		CountryKey:       key,
		CountryName:      key,
		FinalScore:       score,
		OverallChange:    12.5,
		ExchangeScore:    70,
		ExchangeChange:   20,
		ExchangeRate:     4.52,
		FlightScore:      83.4,
		FlightChange:     30,
		FlightCost:       7000,
		ColScore:         78,
		ColChange:        20,
		ColAmount:        1200,
		Badges:           []string{"HOT DEAL"},
		DataSource:       "live_api",
		DataQualityScore: 92.5,
		ExchangeSource:   "live_api",
		FlightSource:     "cache",
		ColSource:        "baseline",
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))

	version, err := s.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestSaveAndLatestRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	snap := testSnapshot("2026-08-30", "japan", 76.2)
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.Latest(ctx, "japan")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", got.SnapshotDate)
	assert.Equal(t, "japan", got.CountryKey)
	assert.InDelta(t, 76.2, got.FinalScore, 0.001)
	assert.Equal(t, []string{"HOT DEAL"}, got.Badges)
	assert.Equal(t, "live_api", got.DataSource)
	assert.InDelta(t, 92.5, got.DataQualityScore, 0.001)
	assert.Equal(t, "cache", got.FlightSource)
}

func TestSaveUpsertsByDateAndKey(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "japan", 60)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "japan", 80)))

	history, err := s.History(ctx, HistoryFilter{CountryKey: "japan", Days: 7})
	require.NoError(t, err)
	require.Len(t, history, 1, "re-running a day must replace, not duplicate")
	assert.InDelta(t, 80, history[0].FinalScore, 0.001)
}

func TestLatestNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Latest(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryOrdering(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	today := "2026-08-30"
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot(today, "japan", 76)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot(today, "vietnam", 82)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot(today, "mexico", 64)))

	history, err := s.History(ctx, HistoryFilter{Days: 3650})
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Same date: highest score first.
	assert.Equal(t, "vietnam", history[0].CountryKey)
	assert.Equal(t, "japan", history[1].CountryKey)
	assert.Equal(t, "mexico", history[2].CountryKey)
}

func TestHistoryFilterByCountry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "japan", 76)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "vietnam", 82)))

	history, err := s.History(ctx, HistoryFilter{CountryKey: "japan", Days: 3650})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "japan", history[0].CountryKey)
}

func TestScoreTrendOldestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-28", "japan", 60)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-29", "japan", 70)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "japan", 80)))

	scores, err := s.ScoreTrend(ctx, "japan", 3650)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 70, 80}, scores)
}

func TestTrendPoints(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	snap := testSnapshot("2026-08-30", "japan", 76.2)
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	points, err := s.Trend(ctx, "japan", 3650)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2026-08-30", points[0].SnapshotDate)
	assert.InDelta(t, 4.52, points[0].ExchangeRate, 0.001)
	assert.InDelta(t, 7000, points[0].FlightCost, 0.001)
	assert.InDelta(t, 1200, points[0].ColAmount, 0.001)
}

func TestQualityStats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a := testSnapshot("2026-08-30", "japan", 76)
	a.DataSource = "live_api"
	a.DataQualityScore = 95
	require.NoError(t, s.SaveSnapshot(ctx, a))

	b := testSnapshot("2026-08-30", "vietnam", 60)
	b.DataSource = "baseline"
	b.DataQualityScore = 40
	require.NoError(t, s.SaveSnapshot(ctx, b))

	stats, err := s.QualityStats(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSnapshots)
	assert.InDelta(t, 67.5, stats.AvgQuality, 0.001)
	assert.InDelta(t, 40, stats.MinQuality, 0.001)
	assert.InDelta(t, 95, stats.MaxQuality, 0.001)
	assert.Equal(t, 1, stats.SourceDistribution["live_api"])
	assert.Equal(t, 1, stats.SourceDistribution["baseline"])
	assert.Zero(t, stats.SourceDistribution["mock"])
}

func TestCleanupDeletesOldSnapshots(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2020-01-01", "japan", 60)))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("2026-08-30", "japan", 80)))

	deleted, err := s.Cleanup(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	got, err := s.Latest(ctx, "japan")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", got.SnapshotDate)
}

func TestEmptyBadgesRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	snap := testSnapshot("2026-08-30", "japan", 76)
	snap.Badges = nil
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.Latest(ctx, "japan")
	require.NoError(t, err)
	assert.Empty(t, got.Badges)
}
