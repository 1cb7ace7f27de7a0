package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteBaseSchema = `
CREATE TABLE IF NOT EXISTS daily_snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_date  DATE NOT NULL,
	country_key    TEXT NOT NULL,
	country_name   TEXT NOT NULL,
	final_score    REAL NOT NULL,
	overall_change REAL,
	exchange_score  REAL,
	exchange_change REAL,
	exchange_rate   REAL,
	flight_score  REAL,
	flight_change REAL,
	flight_cost   REAL,
	col_score  REAL,
	col_change REAL,
	col_amount REAL,
	badges     TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(snapshot_date, country_key)
);

CREATE TABLE IF NOT EXISTS schema_version (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    INTEGER NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshot_date ON daily_snapshots(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_country_key ON daily_snapshots(country_key);
`

// v2 provenance columns, added by migration so databases written by the
// v1 schema upgrade in place.
var sqliteV2Columns = [][2]string{
	{"data_source", "TEXT DEFAULT 'baseline'"},
	{"data_quality_score", "REAL DEFAULT 50.0"},
	{"exchange_source", "TEXT DEFAULT 'baseline'"},
	{"flight_source", "TEXT DEFAULT 'baseline'"},
	{"col_source", "TEXT DEFAULT 'baseline'"},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteBaseSchema); err != nil {
		return eris.Wrap(err, "sqlite: create base schema")
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version < 2 {
		if err := s.migrateToV2(ctx); err != nil {
			return err
		}
		if err := s.setSchemaVersion(ctx, 2); err != nil {
			return err
		}
		zap.L().Info("snapshot schema migrated", zap.Int("from", version), zap.Int("to", 2))
	}

	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_data_quality ON daily_snapshots(data_quality_score)`)
	return eris.Wrap(err, "sqlite: create quality index")
}

func (s *SQLiteStore) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version WHERE id = 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: read schema version")
	}
	return version, nil
}

func (s *SQLiteStore) setSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_version (id, version, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)`,
		version)
	return eris.Wrap(err, "sqlite: set schema version")
}

func (s *SQLiteStore) migrateToV2(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(daily_snapshots)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: table info")
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return eris.Wrap(err, "sqlite: scan table info")
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: iterate table info")
	}

	for _, col := range sqliteV2Columns {
		if existing[col[0]] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE daily_snapshots ADD COLUMN %s %s`, col[0], col[1])
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s", col[0])
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.SnapshotDate == "" {
		snap.SnapshotDate = time.Now().UTC().Format("2006-01-02")
	}
	badgesJSON, err := json.Marshal(snap.Badges)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal badges")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_snapshots (
			snapshot_date, country_key, country_name,
			final_score, overall_change,
			exchange_score, exchange_change, exchange_rate,
			flight_score, flight_change, flight_cost,
			col_score, col_change, col_amount,
			badges,
			data_source, data_quality_score,
			exchange_source, flight_source, col_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotDate, snap.CountryKey, snap.CountryName,
		snap.FinalScore, snap.OverallChange,
		snap.ExchangeScore, snap.ExchangeChange, snap.ExchangeRate,
		snap.FlightScore, snap.FlightChange, snap.FlightCost,
		snap.ColScore, snap.ColChange, snap.ColAmount,
		string(badgesJSON),
		snap.DataSource, snap.DataQualityScore,
		snap.ExchangeSource, snap.FlightSource, snap.ColSource,
	)
	return eris.Wrapf(err, "sqlite: save snapshot %s/%s", snap.SnapshotDate, snap.CountryKey)
}

const snapshotColumns = `
	id, snapshot_date, country_key, country_name,
	final_score, overall_change,
	exchange_score, exchange_change, exchange_rate,
	flight_score, flight_change, flight_cost,
	col_score, col_change, col_amount,
	badges, created_at,
	data_source, data_quality_score,
	exchange_source, flight_source, col_source`

func (s *SQLiteStore) History(ctx context.Context, filter HistoryFilter) ([]Snapshot, error) {
	days := filter.Days
	if days <= 0 {
		days = 7
	}
	query := `SELECT ` + snapshotColumns + `
		FROM daily_snapshots
		WHERE snapshot_date >= date('now', ?)`
	args := []any{fmt.Sprintf("-%d days", days)}

	if filter.CountryKey != "" {
		query += ` AND country_key = ?`
		args = append(args, filter.CountryKey)
	}
	query += ` ORDER BY snapshot_date DESC, final_score DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query history")
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) Latest(ctx context.Context, countryKey string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+`
		FROM daily_snapshots
		WHERE country_key = ?
		ORDER BY snapshot_date DESC
		LIMIT 1`, countryKey)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) ScoreTrend(ctx context.Context, countryKey string, days int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT final_score FROM daily_snapshots
		WHERE country_key = ? AND snapshot_date >= date('now', ?)
		ORDER BY snapshot_date ASC`,
		countryKey, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query score trend")
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		scores = append(scores, score)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: iterate score trend")
}

func (s *SQLiteStore) Trend(ctx context.Context, countryKey string, days int) ([]TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_date, final_score, exchange_rate, flight_cost, col_amount
		FROM daily_snapshots
		WHERE country_key = ? AND snapshot_date >= date('now', ?)
		ORDER BY snapshot_date ASC`,
		countryKey, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query trend")
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.SnapshotDate, &p.FinalScore, &p.ExchangeRate, &p.FlightCost, &p.ColAmount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trend point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate trend")
}

func (s *SQLiteStore) QualityStats(ctx context.Context, days int) (*QualityStats, error) {
	if days <= 0 {
		days = 30
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(AVG(data_quality_score), 0),
			COALESCE(MIN(data_quality_score), 0),
			COALESCE(MAX(data_quality_score), 0),
			COUNT(*),
			SUM(CASE WHEN data_source = 'live_api' THEN 1 ELSE 0 END),
			SUM(CASE WHEN data_source = 'cache' THEN 1 ELSE 0 END),
			SUM(CASE WHEN data_source = 'stale_cache' THEN 1 ELSE 0 END),
			SUM(CASE WHEN data_source = 'baseline' THEN 1 ELSE 0 END),
			SUM(CASE WHEN data_source = 'mock' THEN 1 ELSE 0 END)
		FROM daily_snapshots
		WHERE snapshot_date >= date('now', ?)`,
		fmt.Sprintf("-%d days", days))

	stats := QualityStats{SourceDistribution: make(map[string]int)}
	var liveAPI, cached, staleCache, baseline, mock sql.NullInt64
	err := row.Scan(
		&stats.AvgQuality, &stats.MinQuality, &stats.MaxQuality, &stats.TotalSnapshots,
		&liveAPI, &cached, &staleCache, &baseline, &mock,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query quality stats")
	}
	stats.SourceDistribution["live_api"] = int(liveAPI.Int64)
	stats.SourceDistribution["cache"] = int(cached.Int64)
	stats.SourceDistribution["stale_cache"] = int(staleCache.Int64)
	stats.SourceDistribution["baseline"] = int(baseline.Int64)
	stats.SourceDistribution["mock"] = int(mock.Int64)
	return &stats, nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context, keepDays int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_snapshots WHERE snapshot_date < date('now', ?)`,
		fmt.Sprintf("-%d days", keepDays))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cleanup")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: cleanup rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*Snapshot, error) {
	var snap Snapshot
	var badgesJSON, createdAt sql.NullString

	err := row.Scan(
		&snap.ID, &snap.SnapshotDate, &snap.CountryKey, &snap.CountryName,
		&snap.FinalScore, &snap.OverallChange,
		&snap.ExchangeScore, &snap.ExchangeChange, &snap.ExchangeRate,
		&snap.FlightScore, &snap.FlightChange, &snap.FlightCost,
		&snap.ColScore, &snap.ColChange, &snap.ColAmount,
		&badgesJSON, &createdAt,
		&snap.DataSource, &snap.DataQualityScore,
		&snap.ExchangeSource, &snap.FlightSource, &snap.ColSource,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}

	if createdAt.Valid {
		// CURRENT_TIMESTAMP stores "2006-01-02 15:04:05" in UTC.
		if ts, perr := time.Parse("2006-01-02 15:04:05", createdAt.String); perr == nil {
			snap.CreatedAt = ts.UTC()
		}
	}

	if badgesJSON.Valid && badgesJSON.String != "" {
		if err := json.Unmarshal([]byte(badgesJSON.String), &snap.Badges); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal badges")
		}
	}
	return &snap, nil
}
