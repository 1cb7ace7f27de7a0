// Package store persists daily destination snapshots for trend analysis.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// SchemaVersion is the current snapshot schema. Version 2 added the
// provenance columns.
const SchemaVersion = 2

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = eris.New("snapshot not found")

// Snapshot is one destination's scored state on one date. The
// (SnapshotDate, CountryKey) pair is unique; re-running a day replaces
// the row.
type Snapshot struct {
	ID           int64     `json:"id,omitempty"`
	SnapshotDate string    `json:"snapshot_date"` // YYYY-MM-DD
	CountryKey   string    `json:"country_key"`
	CountryName  string    `json:"country_name"`
	CreatedAt    time.Time `json:"created_at,omitempty"`

	FinalScore    float64 `json:"final_score"`
	OverallChange float64 `json:"overall_change"`

	ExchangeScore  float64 `json:"exchange_score"`
	ExchangeChange float64 `json:"exchange_change"`
	ExchangeRate   float64 `json:"exchange_rate"`

	FlightScore  float64 `json:"flight_score"`
	FlightChange float64 `json:"flight_change"`
	FlightCost   float64 `json:"flight_cost"`

	ColScore  float64 `json:"col_score"`
	ColChange float64 `json:"col_change"`
	ColAmount float64 `json:"col_amount"`

	Badges []string `json:"badges"`

	// Provenance (schema v2).
	DataSource       string  `json:"data_source"`
	DataQualityScore float64 `json:"data_quality_score"`
	ExchangeSource   string  `json:"exchange_source"`
	FlightSource     string  `json:"flight_source"`
	ColSource        string  `json:"col_source"`
}

// HistoryFilter narrows a history query.
type HistoryFilter struct {
	CountryKey string `json:"country_key,omitempty"`
	Days       int    `json:"days,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// TrendPoint is one day of raw component values for charting.
type TrendPoint struct {
	SnapshotDate string  `json:"snapshot_date"`
	FinalScore   float64 `json:"final_score"`
	ExchangeRate float64 `json:"exchange_rate"`
	FlightCost   float64 `json:"flight_cost"`
	ColAmount    float64 `json:"col_amount"`
}

// QualityStats aggregates provenance over recent snapshots.
type QualityStats struct {
	AvgQuality         float64        `json:"avg_quality"`
	MinQuality         float64        `json:"min_quality"`
	MaxQuality         float64        `json:"max_quality"`
	TotalSnapshots     int            `json:"total_snapshots"`
	SourceDistribution map[string]int `json:"source_distribution"`
}

// Store defines snapshot persistence.
type Store interface {
	// SaveSnapshot upserts by (snapshot_date, country_key).
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// History returns snapshots within the window, newest date first,
	// highest score first within a date.
	History(ctx context.Context, filter HistoryFilter) ([]Snapshot, error)

	// Latest returns the most recent snapshot for a destination.
	Latest(ctx context.Context, countryKey string) (*Snapshot, error)

	// ScoreTrend returns final scores oldest-first for sparklines.
	ScoreTrend(ctx context.Context, countryKey string, days int) ([]float64, error)

	// Trend returns raw component values oldest-first for charting.
	Trend(ctx context.Context, countryKey string, days int) ([]TrendPoint, error)

	// QualityStats aggregates provenance over the last N days.
	QualityStats(ctx context.Context, days int) (*QualityStats, error)

	// Cleanup deletes snapshots older than keepDays, returning the count.
	Cleanup(ctx context.Context, keepDays int) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
}
