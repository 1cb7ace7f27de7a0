package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/cache"
	"github.com/howardwork830-creator/nomad-guide/internal/countries"
	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/validate"
)

// flightQuoter is the flight client surface the resolver needs.
type flightQuoter interface {
	Quote(ctx context.Context, origin, destination string) (*quality.Sample, error)
}

// rateFetcher is the exchange client surface the resolver needs.
type rateFetcher interface {
	Rates(ctx context.Context, base string) (map[string]*quality.Sample, error)
}

// ResolverConfig tunes resolver behavior.
type ResolverConfig struct {
	// AllowStale lets cache reads serve entries past their TTL (up to
	// twice the TTL) when live data is unavailable.
	AllowStale bool
	// UseMock skips all live and cached sources and serves baselines
	// tagged as demo data. For development without API keys.
	UseMock bool
}

// Resolver turns a destination into indicator samples, consulting each
// source tier in order: cache first (stale entries included when
// configured), then the breaker-gated live API on a miss, then the
// config baseline. Every returned sample carries the provenance of the
// tier that produced it, so resolution never fails — it only degrades.
type Resolver struct {
	flights  flightQuoter
	exchange rateFetcher
	cache    *cache.Store
	origin   countries.Origin
	cfg      ResolverConfig

	// The exchange API returns every conversion rate for the base
	// currency in one response, so the live call happens at most once
	// per resolver lifetime and its result serves the whole catalog.
	ratesMu      sync.Mutex
	ratesFetched bool
	rates        map[string]*quality.Sample
	ratesErr     error
}

// NewResolver wires a resolver over the given clients and cache.
func NewResolver(flights flightQuoter, exchange rateFetcher, cacheStore *cache.Store, origin countries.Origin, cfg ResolverConfig) *Resolver {
	return &Resolver{
		flights:  flights,
		exchange: exchange,
		cache:    cacheStore,
		origin:   origin,
		cfg:      cfg,
	}
}

// ExchangeRate resolves the TWD-to-destination-currency rate. The cached
// rates map is keyed by the base currency and holds every destination's
// rate from one upstream response.
func (r *Resolver) ExchangeRate(ctx context.Context, d *countries.Destination) *quality.Sample {
	if r.cfg.UseMock {
		return quality.FromMock(d.Baseline.ExchangeRate, "exchange_rate")
	}

	if hit, err := r.cache.Fetch("exchange", r.origin.Currency, r.cfg.AllowStale); err == nil {
		if rates, ok := hit.Payload["rates"].(map[string]any); ok {
			if raw, ok := rates[d.CurrencyCode].(float64); ok {
				if res := validate.ExchangeRate(raw, d.CurrencyCode, false); res.IsValid {
					return quality.FromCache(res.SanitizedValue, "exchange_rate", hit.CachedAt, hit.Stale)
				}
			}
		}
	}

	if samples, err := r.liveRates(ctx); err == nil {
		if s, ok := samples[d.CurrencyCode]; ok {
			return s
		}
		zap.L().Warn("currency missing from live rates, falling back",
			zap.String("currency", d.CurrencyCode),
		)
	} else if !errors.Is(err, ErrUnavailable) {
		zap.L().Warn("live exchange rates failed, falling back",
			zap.String("currency", d.CurrencyCode),
			zap.Error(err),
		)
	}

	return quality.FromBaseline(d.Baseline.ExchangeRate, "exchange_rate", baselineDate(d))
}

// liveRates fetches the full conversion-rates map once and writes it
// through to the cache whole, so later runs within the TTL never touch
// the API at all.
func (r *Resolver) liveRates(ctx context.Context) (map[string]*quality.Sample, error) {
	r.ratesMu.Lock()
	defer r.ratesMu.Unlock()

	if r.ratesFetched {
		return r.rates, r.ratesErr
	}
	r.ratesFetched = true

	r.rates, r.ratesErr = r.exchange.Rates(ctx, r.origin.Currency)
	if r.ratesErr == nil {
		raw := make(map[string]any, len(r.rates))
		for currency, s := range r.rates {
			raw[currency] = s.Value
		}
		r.writeThrough("exchange", r.origin.Currency, map[string]any{"rates": raw})
	}
	return r.rates, r.ratesErr
}

// FlightCost resolves the round-trip flight cost in TWD from the origin
// airport to the destination.
func (r *Resolver) FlightCost(ctx context.Context, d *countries.Destination) *quality.Sample {
	if r.cfg.UseMock {
		return quality.FromMock(d.Baseline.FlightCostTWD, "flight_cost")
	}

	if hit, err := r.cache.Fetch("flights", d.AirportCode, r.cfg.AllowStale); err == nil {
		if v, ok := hit.Payload["price"].(float64); ok {
			if res := validate.FlightCost(v, r.origin.Airport, d.AirportCode, false); res.IsValid {
				return quality.FromCache(res.SanitizedValue, "flight_cost", hit.CachedAt, hit.Stale)
			}
		}
	}

	if s, err := r.flights.Quote(ctx, r.origin.Airport, d.AirportCode); err == nil {
		r.writeThrough("flights", d.AirportCode, map[string]any{"price": s.Value})
		return s
	} else if !errors.Is(err, ErrUnavailable) {
		zap.L().Warn("live flight price failed, falling back",
			zap.String("destination", d.AirportCode),
			zap.Error(err),
		)
	}

	return quality.FromBaseline(d.Baseline.FlightCostTWD, "flight_cost", baselineDate(d))
}

// CostOfLiving resolves the monthly cost of living in USD. There is no
// live API for this indicator; it comes from cache (written by imports
// or earlier runs) or from the config baseline.
func (r *Resolver) CostOfLiving(ctx context.Context, d *countries.Destination) *quality.Sample {
	if r.cfg.UseMock {
		return quality.FromMock(d.Baseline.ColUSD, "col")
	}

	if hit, err := r.cache.Fetch("col", d.Key, r.cfg.AllowStale); err == nil {
		if v, ok := hit.Payload["amount"].(float64); ok {
			if res := validate.CostOfLiving(v, d.Country, d.Name, false); res.IsValid {
				return quality.FromCache(res.SanitizedValue, "col", hit.CachedAt, hit.Stale)
			}
		}
	}

	return quality.FromBaseline(d.Baseline.ColUSD, "col", baselineDate(d))
}

func (r *Resolver) writeThrough(dataType, key string, payload map[string]any) {
	if err := r.cache.Save(dataType, key, payload); err != nil {
		zap.L().Warn("cache write-through failed",
			zap.String("type", dataType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func baselineDate(d *countries.Destination) time.Time {
	if d.Baseline.AsOf == "" {
		return time.Time{}
	}
	ts, err := time.Parse("2006-01-02", d.Baseline.AsOf)
	if err != nil {
		return time.Time{}
	}
	return ts
}
