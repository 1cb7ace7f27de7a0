// Package pipeline orchestrates a ranking run: resolve indicator data
// for every destination, score it, assign badges, and persist snapshots.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/howardwork830-creator/nomad-guide/internal/countries"
	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/scoring"
	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

// Resolver is the data resolution surface the pipeline needs.
type Resolver interface {
	ExchangeRate(ctx context.Context, d *countries.Destination) *quality.Sample
	FlightCost(ctx context.Context, d *countries.Destination) *quality.Sample
	CostOfLiving(ctx context.Context, d *countries.Destination) *quality.Sample
}

// Services holds the pipeline's dependencies, wired explicitly by the
// caller.
type Services struct {
	Catalog  *countries.Catalog
	Resolver Resolver
	Store    store.Store
}

// Options tunes a ranking run.
type Options struct {
	// UseExpanded enables the six-indicator weight set for destinations
	// carrying safety/visa/access data.
	UseExpanded bool
	// MaxConcurrent bounds parallel destination resolution. Default: 4.
	MaxConcurrent int
	// Persist writes a snapshot per destination. Disabled for dry runs.
	Persist bool
}

// Ranked is one destination's outcome in a run.
type Ranked struct {
	Destination *countries.Destination
	Result      scoring.Result
	Badges      []scoring.Badge
	Trend       scoring.Trend
	Quality     *quality.DestinationQuality

	// Delta vs the previous stored snapshot, nil on first sighting.
	Delta *scoring.Delta

	// Stored is false when snapshot persistence failed or was skipped;
	// the ranking itself is still valid.
	Stored bool
}

// RunResult is the outcome of one full ranking run.
type RunResult struct {
	RunID      string
	Rankings   []Ranked
	Quality    quality.Summary
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline runs ranking passes over the destination catalog.
type Pipeline struct {
	svc  Services
	opts Options

	mu          sync.Mutex
	lastSuccess time.Time

	nowFunc func() time.Time
}

// New creates a pipeline. Catalog and Resolver are required; Store may
// be nil only when Persist is off.
func New(svc Services, opts Options) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Pipeline{svc: svc, opts: opts, nowFunc: time.Now}
}

// LastSuccessfulUpdate returns when the last run completed, zero if none
// has.
func (p *Pipeline) LastSuccessfulUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// Rank resolves, scores, and persists every destination in the catalog.
// A failing indicator degrades that destination's data quality; a
// failing snapshot write marks the entry unstored. Only an empty catalog
// or context cancellation aborts the run.
func (p *Pipeline) Rank(ctx context.Context) (*RunResult, error) {
	dests := p.svc.Catalog.All()
	if len(dests) == 0 {
		return nil, eris.New("no destinations configured")
	}

	runID := uuid.NewString()
	started := p.nowFunc()
	zap.L().Info("ranking run started",
		zap.String("run_id", runID),
		zap.Int("destinations", len(dests)),
		zap.Bool("expanded", p.opts.UseExpanded),
	)

	ranked := make([]Ranked, len(dests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrent)
	for i, d := range dests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ranked[i] = p.rankOne(gctx, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ranking run aborted")
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.FinalScore > ranked[j].Result.FinalScore
	})

	qualities := make([]*quality.DestinationQuality, len(ranked))
	for i := range ranked {
		qualities[i] = ranked[i].Quality
	}

	finished := p.nowFunc()
	p.mu.Lock()
	p.lastSuccess = finished
	p.mu.Unlock()

	zap.L().Info("ranking run finished",
		zap.String("run_id", runID),
		zap.Int("destinations", len(ranked)),
		zap.Duration("elapsed", finished.Sub(started)),
	)

	return &RunResult{
		RunID:      runID,
		Rankings:   ranked,
		Quality:    quality.Summarize(qualities),
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}

func (p *Pipeline) rankOne(ctx context.Context, d *countries.Destination) Ranked {
	ex := p.svc.Resolver.ExchangeRate(ctx, d)
	fl := p.svc.Resolver.FlightCost(ctx, d)
	col := p.svc.Resolver.CostOfLiving(ctx, d)

	dq := quality.NewDestinationQuality(d.Key, d.Name)
	dq.Set(quality.IndicatorExchange, ex)
	dq.Set(quality.IndicatorFlight, fl)
	dq.Set(quality.IndicatorCol, col)

	// Expanded indicators live in the catalog, so their provenance is
	// always baseline.
	if d.SafetyScore != nil {
		dq.Set(quality.IndicatorSafety, quality.FromBaseline(*d.SafetyScore, "safety_score", time.Time{}))
	}
	if d.VisaScore != nil {
		dq.Set(quality.IndicatorVisa, quality.FromBaseline(*d.VisaScore, "visa_score", time.Time{}))
	}
	if d.AccessScore != nil {
		dq.Set(quality.IndicatorAccess, quality.FromBaseline(*d.AccessScore, "access_score", time.Time{}))
	}

	result := scoring.Score(scoring.Inputs{
		CurrentExchange:  ex.Value,
		BaselineExchange: d.Baseline.ExchangeRate,
		CurrentFlight:    fl.Value,
		BaselineFlight:   d.Baseline.FlightCostTWD,
		CurrentCol:       col.Value,
		BaselineCol:      d.Baseline.ColUSD,
		Currency:         d.CurrencyCode,
		Country:          d.Country,
		Safety:           d.SafetyScore,
		Visa:             d.VisaScore,
		Access:           d.AccessScore,
		UseExpanded:      p.opts.UseExpanded,
		Quality:          dq,
	})
	if errs := result.Validate(); len(errs) > 0 {
		zap.L().Error("score validation failed",
			zap.String("destination", d.Key),
			zap.Strings("errors", errs),
		)
	}

	r := Ranked{
		Destination: d,
		Result:      result,
		Badges:      scoring.AssignBadges(&result, d.HasNomadVisa),
		Trend:       scoring.ClassifyTrend(result.OverallChange),
		Quality:     dq,
	}

	if p.opts.Persist && p.svc.Store != nil {
		r.Delta = p.deltaFromPrevious(ctx, d.Key, &result)
		r.Stored = p.persist(ctx, d, &r)
	}

	zap.L().Debug("destination ranked",
		zap.String("destination", d.Key),
		zap.Float64("final_score", result.FinalScore),
		zap.String("data_source", dq.PrimarySource().String()),
		zap.Float64("quality", dq.OverallScore()),
	)
	return r
}

func (p *Pipeline) deltaFromPrevious(ctx context.Context, key string, current *scoring.Result) *scoring.Delta {
	prev, err := p.svc.Store.Latest(ctx, key)
	if err != nil {
		return nil
	}
	previous := &scoring.Result{
		FinalScore: prev.FinalScore,
		Exchange:   scoring.Component{Score: prev.ExchangeScore},
		Flight:     scoring.Component{Score: prev.FlightScore},
		Col:        scoring.Component{Score: prev.ColScore},
	}
	delta := scoring.DeltaBetween(current, previous)
	return &delta
}

func (p *Pipeline) persist(ctx context.Context, d *countries.Destination, r *Ranked) bool {
	snap := p.buildSnapshot(d, r)
	if err := p.svc.Store.SaveSnapshot(ctx, snap); err != nil {
		zap.L().Error("snapshot not stored",
			zap.String("destination", d.Key),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (p *Pipeline) buildSnapshot(d *countries.Destination, r *Ranked) *store.Snapshot {
	sources := r.Quality.SourceNames()
	return &store.Snapshot{
		SnapshotDate: p.nowFunc().UTC().Format("2006-01-02"),
		CountryKey:   d.Key,
		CountryName:  d.Name,

		FinalScore:    r.Result.FinalScore,
		OverallChange: r.Result.OverallChange,

		ExchangeScore:  r.Result.Exchange.Score,
		ExchangeChange: r.Result.Exchange.Change,
		ExchangeRate:   r.Result.Exchange.Current,

		FlightScore:  r.Result.Flight.Score,
		FlightChange: r.Result.Flight.Change,
		FlightCost:   r.Result.Flight.Current,

		ColScore:  r.Result.Col.Score,
		ColChange: r.Result.Col.Change,
		ColAmount: r.Result.Col.Current,

		Badges: scoring.BadgeStrings(r.Badges),

		DataSource:       r.Quality.PrimarySource().String(),
		DataQualityScore: r.Quality.OverallScore(),
		ExchangeSource:   sources[quality.IndicatorExchange],
		FlightSource:     sources[quality.IndicatorFlight],
		ColSource:        sources[quality.IndicatorCol],
	}
}
