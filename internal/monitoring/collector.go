package monitoring

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

// QualityReport summarizes snapshot provenance over a recent window, for
// the data-quality footer under rankings output.
type QualityReport struct {
	WindowDays int                 `json:"window_days"`
	Stats      *store.QualityStats `json:"stats"`

	// Level categorizes the average quality score.
	Level quality.QualityLevel `json:"level"`

	// LiveShare is the fraction of snapshots built from live API data.
	LiveShare float64 `json:"live_share"`
}

// Collector derives quality reports from stored snapshots.
type Collector struct {
	store store.Store
}

// NewCollector creates a quality collector over the snapshot store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect aggregates provenance over the last days of snapshots.
func (c *Collector) Collect(ctx context.Context, days int) (*QualityReport, error) {
	if c.store == nil {
		return nil, eris.New("monitoring: no store configured")
	}
	stats, err := c.store.QualityStats(ctx, days)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect quality stats")
	}

	report := &QualityReport{
		WindowDays: days,
		Stats:      stats,
		Level:      levelFor(stats.AvgQuality),
	}
	if stats.TotalSnapshots > 0 {
		report.LiveShare = float64(stats.SourceDistribution["live_api"]) / float64(stats.TotalSnapshots)
	}
	return report, nil
}

func levelFor(score float64) quality.QualityLevel {
	switch {
	case score >= 80:
		return quality.QualityExcellent
	case score >= 60:
		return quality.QualityGood
	case score >= 40:
		return quality.QualityFair
	default:
		return quality.QualityPoor
	}
}
