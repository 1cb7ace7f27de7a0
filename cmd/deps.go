package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/howardwork830-creator/nomad-guide/internal/cache"
	"github.com/howardwork830-creator/nomad-guide/internal/countries"
	"github.com/howardwork830-creator/nomad-guide/internal/fetch"
	"github.com/howardwork830-creator/nomad-guide/internal/pipeline"
	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

// dataSources are the external APIs guarded by breakers and limiters.
var dataSources = []string{"flights", "exchange"}

// env is the shared dependency wiring for commands.
type env struct {
	store    store.Store
	cache    *cache.Store
	breakers *resilience.Registry
	limiters *resilience.LimiterRegistry
	catalog  *countries.Catalog
	resolver *fetch.Resolver
	pipe     *pipeline.Pipeline
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "", "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// envOptions are per-command overrides of config defaults.
type envOptions struct {
	mock    bool
	persist bool
}

func initEnv(ctx context.Context, opts envOptions) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	cs, err := cache.New(cfg.Cache.Dir, cache.WithMaxBytes(cfg.Cache.MaxBytes))
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init cache")
	}

	catalog, err := countries.Load(cfg.Countries.Path)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load countries")
	}

	breakers := resilience.NewRegistry(resilience.SourceConfigs(), resilience.DefaultCircuitBreakerConfig())
	limiters := resilience.NewLimiterRegistry(resilience.DefaultRateLimiterConfig())

	flights := fetch.NewFlightClient(cfg.Flights, breakers, limiters)
	exchange := fetch.NewExchangeClient(cfg.Exchange, breakers, limiters)
	resolver := fetch.NewResolver(flights, exchange, cs, catalog.Origin, fetch.ResolverConfig{
		AllowStale: cfg.Pipeline.AllowStaleCache,
		UseMock:    opts.mock || cfg.Pipeline.UseMockData,
	})

	pipe := pipeline.New(pipeline.Services{
		Catalog:  catalog,
		Resolver: resolver,
		Store:    st,
	}, pipeline.Options{
		UseExpanded:   cfg.Scoring.UseExpanded,
		MaxConcurrent: cfg.Pipeline.MaxConcurrentDestinations,
		Persist:       opts.persist,
	})

	return &env{
		store:    st,
		cache:    cs,
		breakers: breakers,
		limiters: limiters,
		catalog:  catalog,
		resolver: resolver,
		pipe:     pipe,
	}, nil
}
