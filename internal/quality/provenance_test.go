package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceKindOrdering(t *testing.T) {
	assert.True(t, SourceMock < SourceBaseline)
	assert.True(t, SourceBaseline < SourceStaleCache)
	assert.True(t, SourceStaleCache < SourceCache)
	assert.True(t, SourceCache < SourceLiveAPI)
}

func TestFromLiveAPI(t *testing.T) {
	s := FromLiveAPI(4.52, "exchange_rate", 90, []string{"unknown currency"})
	assert.Equal(t, SourceLiveAPI, s.Source)
	assert.Equal(t, "live_api", s.SourceName)
	assert.Equal(t, 90.0, s.QualityScore)
	assert.Equal(t, FreshnessFresh, s.Freshness)
	assert.Len(t, s.Warnings, 1)
}

func TestFromCacheAgePenalty(t *testing.T) {
	// 5 hours old: 90 - 5 = 85.
	s := FromCache(4.52, "exchange_rate", time.Now().Add(-5*time.Hour), false)
	assert.Equal(t, SourceCache, s.Source)
	assert.InDelta(t, 85, s.QualityScore, 0.01)
	assert.InDelta(t, 5*3600, s.CacheAgeSeconds, 5)

	// Stale base is 60: 5 hours old gives 55.
	s = FromCache(4.52, "exchange_rate", time.Now().Add(-5*time.Hour), true)
	assert.Equal(t, SourceStaleCache, s.Source)
	assert.InDelta(t, 55, s.QualityScore, 0.01)
}

func TestFromCachePenaltyCapAndFloor(t *testing.T) {
	// Penalty caps at 20 points regardless of age.
	s := FromCache(4.52, "exchange_rate", time.Now().Add(-100*time.Hour), false)
	assert.InDelta(t, 70, s.QualityScore, 0.01)

	// Stale base 60 minus capped penalty 20 = 40, still above the floor.
	s = FromCache(4.52, "exchange_rate", time.Now().Add(-100*time.Hour), true)
	assert.InDelta(t, 40, s.QualityScore, 0.01)
}

func TestFixedSourceScores(t *testing.T) {
	b := FromBaseline(4.5, "exchange_rate", time.Time{})
	assert.Equal(t, 40.0, b.QualityScore)
	assert.Equal(t, SourceBaseline, b.Source)

	m := FromMock(4.5, "exchange_rate")
	assert.Equal(t, 20.0, m.QualityScore)
	assert.Equal(t, SourceMock, m.Source)
}

func TestFreshnessLevels(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want FreshnessLevel
	}{
		{30 * time.Minute, FreshnessFresh},
		{5 * time.Hour, FreshnessRecent},
		{3 * 24 * time.Hour, FreshnessStale},
		{10 * 24 * time.Hour, FreshnessVeryStale},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, freshnessAt(now.Add(-tc.age), now), "age %v", tc.age)
	}
}

func TestConfidenceMultiplierRange(t *testing.T) {
	assert.InDelta(t, 0.8, ConfidenceMultiplier(0), 1e-9)
	assert.InDelta(t, 0.9, ConfidenceMultiplier(50), 1e-9)
	assert.InDelta(t, 1.0, ConfidenceMultiplier(100), 1e-9)
	// Never boosts.
	assert.LessOrEqual(t, ConfidenceMultiplier(100), 1.0)
}
