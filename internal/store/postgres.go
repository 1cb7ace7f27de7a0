package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. It exists for shared
// deployments where several renderers write to one snapshot database;
// single-host installs use SQLite.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS daily_snapshots (
	id             BIGSERIAL PRIMARY KEY,
	snapshot_date  DATE NOT NULL,
	country_key    TEXT NOT NULL,
	country_name   TEXT NOT NULL,
	final_score    DOUBLE PRECISION NOT NULL,
	overall_change DOUBLE PRECISION,
	exchange_score  DOUBLE PRECISION,
	exchange_change DOUBLE PRECISION,
	exchange_rate   DOUBLE PRECISION,
	flight_score  DOUBLE PRECISION,
	flight_change DOUBLE PRECISION,
	flight_cost   DOUBLE PRECISION,
	col_score  DOUBLE PRECISION,
	col_change DOUBLE PRECISION,
	col_amount DOUBLE PRECISION,
	badges     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(snapshot_date, country_key)
);

CREATE TABLE IF NOT EXISTS schema_version (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE daily_snapshots ADD COLUMN IF NOT EXISTS data_source TEXT DEFAULT 'baseline';
ALTER TABLE daily_snapshots ADD COLUMN IF NOT EXISTS data_quality_score DOUBLE PRECISION DEFAULT 50.0;
ALTER TABLE daily_snapshots ADD COLUMN IF NOT EXISTS exchange_source TEXT DEFAULT 'baseline';
ALTER TABLE daily_snapshots ADD COLUMN IF NOT EXISTS flight_source TEXT DEFAULT 'baseline';
ALTER TABLE daily_snapshots ADD COLUMN IF NOT EXISTS col_source TEXT DEFAULT 'baseline';

CREATE INDEX IF NOT EXISTS idx_snapshot_date ON daily_snapshots(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_country_key ON daily_snapshots(country_key);
CREATE INDEX IF NOT EXISTS idx_data_quality ON daily_snapshots(data_quality_score);

INSERT INTO schema_version (id, version) VALUES (1, 2)
ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated_at = now();
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.SnapshotDate == "" {
		snap.SnapshotDate = time.Now().UTC().Format("2006-01-02")
	}
	badgesJSON, err := json.Marshal(snap.Badges)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal badges")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_snapshots (
			snapshot_date, country_key, country_name,
			final_score, overall_change,
			exchange_score, exchange_change, exchange_rate,
			flight_score, flight_change, flight_cost,
			col_score, col_change, col_amount,
			badges,
			data_source, data_quality_score,
			exchange_source, flight_source, col_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (snapshot_date, country_key) DO UPDATE SET
			country_name = EXCLUDED.country_name,
			final_score = EXCLUDED.final_score,
			overall_change = EXCLUDED.overall_change,
			exchange_score = EXCLUDED.exchange_score,
			exchange_change = EXCLUDED.exchange_change,
			exchange_rate = EXCLUDED.exchange_rate,
			flight_score = EXCLUDED.flight_score,
			flight_change = EXCLUDED.flight_change,
			flight_cost = EXCLUDED.flight_cost,
			col_score = EXCLUDED.col_score,
			col_change = EXCLUDED.col_change,
			col_amount = EXCLUDED.col_amount,
			badges = EXCLUDED.badges,
			data_source = EXCLUDED.data_source,
			data_quality_score = EXCLUDED.data_quality_score,
			exchange_source = EXCLUDED.exchange_source,
			flight_source = EXCLUDED.flight_source,
			col_source = EXCLUDED.col_source`,
		snap.SnapshotDate, snap.CountryKey, snap.CountryName,
		snap.FinalScore, snap.OverallChange,
		snap.ExchangeScore, snap.ExchangeChange, snap.ExchangeRate,
		snap.FlightScore, snap.FlightChange, snap.FlightCost,
		snap.ColScore, snap.ColChange, snap.ColAmount,
		string(badgesJSON),
		snap.DataSource, snap.DataQualityScore,
		snap.ExchangeSource, snap.FlightSource, snap.ColSource,
	)
	return eris.Wrapf(err, "postgres: save snapshot %s/%s", snap.SnapshotDate, snap.CountryKey)
}

const pgSnapshotColumns = `
	id, snapshot_date::text, country_key, country_name,
	final_score, overall_change,
	exchange_score, exchange_change, exchange_rate,
	flight_score, flight_change, flight_cost,
	col_score, col_change, col_amount,
	badges::text, created_at,
	data_source, data_quality_score,
	exchange_source, flight_source, col_source`

func (s *PostgresStore) History(ctx context.Context, filter HistoryFilter) ([]Snapshot, error) {
	days := filter.Days
	if days <= 0 {
		days = 7
	}
	query := `SELECT ` + pgSnapshotColumns + `
		FROM daily_snapshots
		WHERE snapshot_date >= CURRENT_DATE - $1::int`
	args := []any{days}

	if filter.CountryKey != "" {
		query += ` AND country_key = $2`
		args = append(args, filter.CountryKey)
	}
	query += ` ORDER BY snapshot_date DESC, final_score DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query history")
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	if filter.Limit > 0 && len(snaps) > filter.Limit {
		snaps = snaps[:filter.Limit]
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) Latest(ctx context.Context, countryKey string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgSnapshotColumns+`
		FROM daily_snapshots
		WHERE country_key = $1
		ORDER BY snapshot_date DESC
		LIMIT 1`, countryKey)
	return scanPgSnapshot(row)
}

func (s *PostgresStore) ScoreTrend(ctx context.Context, countryKey string, days int) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT final_score FROM daily_snapshots
		WHERE country_key = $1 AND snapshot_date >= CURRENT_DATE - $2::int
		ORDER BY snapshot_date ASC`, countryKey, days)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query score trend")
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		scores = append(scores, score)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: iterate score trend")
}

func (s *PostgresStore) Trend(ctx context.Context, countryKey string, days int) ([]TrendPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_date::text, final_score, exchange_rate, flight_cost, col_amount
		FROM daily_snapshots
		WHERE country_key = $1 AND snapshot_date >= CURRENT_DATE - $2::int
		ORDER BY snapshot_date ASC`, countryKey, days)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query trend")
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.SnapshotDate, &p.FinalScore, &p.ExchangeRate, &p.FlightCost, &p.ColAmount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trend point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate trend")
}

func (s *PostgresStore) QualityStats(ctx context.Context, days int) (*QualityStats, error) {
	if days <= 0 {
		days = 30
	}
	row := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(data_quality_score), 0),
			COALESCE(MIN(data_quality_score), 0),
			COALESCE(MAX(data_quality_score), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE data_source = 'live_api'),
			COUNT(*) FILTER (WHERE data_source = 'cache'),
			COUNT(*) FILTER (WHERE data_source = 'stale_cache'),
			COUNT(*) FILTER (WHERE data_source = 'baseline'),
			COUNT(*) FILTER (WHERE data_source = 'mock')
		FROM daily_snapshots
		WHERE snapshot_date >= CURRENT_DATE - $1::int`, days)

	stats := QualityStats{SourceDistribution: make(map[string]int)}
	var liveAPI, cached, staleCache, baseline, mock int
	err := row.Scan(
		&stats.AvgQuality, &stats.MinQuality, &stats.MaxQuality, &stats.TotalSnapshots,
		&liveAPI, &cached, &staleCache, &baseline, &mock,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query quality stats")
	}
	stats.SourceDistribution["live_api"] = liveAPI
	stats.SourceDistribution["cache"] = cached
	stats.SourceDistribution["stale_cache"] = staleCache
	stats.SourceDistribution["baseline"] = baseline
	stats.SourceDistribution["mock"] = mock
	return &stats, nil
}

func (s *PostgresStore) Cleanup(ctx context.Context, keepDays int) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM daily_snapshots WHERE snapshot_date < CURRENT_DATE - $1::int`, keepDays)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cleanup")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgSnapshot(row pgx.Row) (*Snapshot, error) {
	var snap Snapshot
	var badgesJSON *string

	err := row.Scan(
		&snap.ID, &snap.SnapshotDate, &snap.CountryKey, &snap.CountryName,
		&snap.FinalScore, &snap.OverallChange,
		&snap.ExchangeScore, &snap.ExchangeChange, &snap.ExchangeRate,
		&snap.FlightScore, &snap.FlightChange, &snap.FlightCost,
		&snap.ColScore, &snap.ColChange, &snap.ColAmount,
		&badgesJSON, &snap.CreatedAt,
		&snap.DataSource, &snap.DataQualityScore,
		&snap.ExchangeSource, &snap.FlightSource, &snap.ColSource,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}

	if badgesJSON != nil && *badgesJSON != "" {
		if err := json.Unmarshal([]byte(*badgesJSON), &snap.Badges); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal badges")
		}
	}
	return &snap, nil
}
