// Package monitoring aggregates system health and data quality reports
// for the health command and the HTTP health endpoints.
package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/cache"
	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

// Status is the coarse health verdict.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// maxRunStaleness is how old the last successful ranking run may be
// before health is considered degraded. Rankings are meant to refresh
// daily; two missed days means the data on display is going stale.
const maxRunStaleness = 48 * time.Hour

// ComponentHealth is one subsystem's verdict.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is a full health snapshot.
type Report struct {
	Status     Status                                 `json:"status"`
	CheckedAt  time.Time                              `json:"checked_at"`
	Components []ComponentHealth                      `json:"components"`
	Cache      *cache.Health                          `json:"cache,omitempty"`
	Breakers   map[string]resilience.CircuitCounters  `json:"breakers,omitempty"`
	Backoffs   map[string]time.Duration               `json:"backoffs,omitempty"`
	LastRun    time.Time                              `json:"last_run,omitempty"`
}

// Checker aggregates health across the database, the file cache, the
// circuit breakers, and run recency.
type Checker struct {
	store    store.Store
	cache    *cache.Store
	breakers *resilience.Registry
	limiters *resilience.LimiterRegistry
	sources  []string
	lastRun  func() time.Time

	nowFunc func() time.Time
}

// NewChecker creates a health checker. sources names the external APIs
// whose limiter backoffs are reported; lastRun reports the most recent
// successful ranking run (zero when none, nil to skip the check).
func NewChecker(st store.Store, cs *cache.Store, breakers *resilience.Registry, limiters *resilience.LimiterRegistry, sources []string, lastRun func() time.Time) *Checker {
	return &Checker{
		store:    st,
		cache:    cs,
		breakers: breakers,
		limiters: limiters,
		sources:  sources,
		lastRun:  lastRun,
		nowFunc:  time.Now,
	}
}

// Check runs all health probes and aggregates the verdict: any failing
// probe marks the whole report down, any degraded probe degrades it.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{Status: StatusOK, CheckedAt: c.nowFunc()}

	report.add(c.checkDatabase(ctx))
	report.add(c.checkCache(&report))
	report.add(c.checkBreakers(&report))
	report.add(c.checkBackoffs(&report))
	report.add(c.checkLastRun(&report))

	if report.Status != StatusOK {
		zap.L().Warn("health check not ok", zap.String("status", string(report.Status)))
	}
	return report
}

// Ready reports whether the service can serve: the database must answer.
func (c *Checker) Ready(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	return c.store.Ping(ctx) == nil
}

func (r *Report) add(ch ComponentHealth) {
	r.Components = append(r.Components, ch)
	switch ch.Status {
	case StatusDown:
		r.Status = StatusDown
	case StatusDegraded:
		if r.Status == StatusOK {
			r.Status = StatusDegraded
		}
	}
}

func (c *Checker) checkDatabase(ctx context.Context) ComponentHealth {
	ch := ComponentHealth{Name: "database", Status: StatusOK}
	if c.store == nil {
		ch.Status = StatusDown
		ch.Detail = "not configured"
		return ch
	}
	if err := c.store.Ping(ctx); err != nil {
		ch.Status = StatusDown
		ch.Detail = err.Error()
	}
	return ch
}

func (c *Checker) checkCache(report *Report) ComponentHealth {
	ch := ComponentHealth{Name: "cache", Status: StatusOK}
	if c.cache == nil {
		ch.Detail = "not configured"
		return ch
	}
	health, err := c.cache.CheckHealth()
	if err != nil {
		ch.Status = StatusDegraded
		ch.Detail = err.Error()
		return ch
	}
	report.Cache = &health
	if health.Corrupt > 0 {
		ch.Status = StatusDegraded
		ch.Detail = "corrupt entries present"
	}
	return ch
}

func (c *Checker) checkBreakers(report *Report) ComponentHealth {
	ch := ComponentHealth{Name: "breakers", Status: StatusOK}
	if c.breakers == nil {
		return ch
	}
	counters := c.breakers.Counters()
	report.Breakers = counters
	for name, cc := range counters {
		if cc.State != resilience.CircuitClosed {
			ch.Status = StatusDegraded
			ch.Detail = name + " circuit " + cc.StateName
		}
	}
	return ch
}

func (c *Checker) checkBackoffs(report *Report) ComponentHealth {
	ch := ComponentHealth{Name: "rate_limits", Status: StatusOK}
	if c.limiters == nil {
		return ch
	}
	backoffs := make(map[string]time.Duration, len(c.sources))
	for _, source := range c.sources {
		if remaining := c.limiters.Get(source).BackoffRemaining(); remaining > 0 {
			backoffs[source] = remaining
			ch.Status = StatusDegraded
			ch.Detail = source + " in 429 backoff"
		}
	}
	if len(backoffs) > 0 {
		report.Backoffs = backoffs
	}
	return ch
}

func (c *Checker) checkLastRun(report *Report) ComponentHealth {
	ch := ComponentHealth{Name: "last_run", Status: StatusOK}
	if c.lastRun == nil {
		return ch
	}
	last := c.lastRun()
	report.LastRun = last
	switch {
	case last.IsZero():
		ch.Detail = "no run recorded"
	case c.nowFunc().Sub(last) > maxRunStaleness:
		ch.Status = StatusDegraded
		ch.Detail = "last run older than 48h"
	}
	return ch
}
