// Package quality tracks data provenance and derives confidence scores
// for destination indicator values.
package quality

import "time"

// SourceKind identifies where an indicator value came from. Higher values
// are more trustworthy.
type SourceKind int

const (
	// SourceMock is demo/placeholder data.
	SourceMock SourceKind = iota
	// SourceBaseline is the static baseline from the country config.
	SourceBaseline
	// SourceStaleCache is cached data past its TTL but within the stale window.
	SourceStaleCache
	// SourceCache is cached data within its TTL.
	SourceCache
	// SourceLiveAPI is fresh data from an external API.
	SourceLiveAPI
)

func (s SourceKind) String() string {
	switch s {
	case SourceLiveAPI:
		return "live_api"
	case SourceCache:
		return "cache"
	case SourceStaleCache:
		return "stale_cache"
	case SourceBaseline:
		return "baseline"
	case SourceMock:
		return "mock"
	default:
		return "unknown"
	}
}

// Label returns the human-readable label for a source.
func (s SourceKind) Label() string {
	switch s {
	case SourceLiveAPI:
		return "Live API"
	case SourceCache:
		return "Cached"
	case SourceStaleCache:
		return "Stale Cache"
	case SourceBaseline:
		return "Baseline"
	case SourceMock:
		return "Demo Data"
	default:
		return "Unknown"
	}
}

// Base quality scores per source kind.
const (
	scoreLiveAPI    = 100.0
	scoreCache      = 90.0
	scoreStaleCache = 60.0
	scoreBaseline   = 40.0
	scoreMock       = 20.0
)

// FreshnessLevel categorizes the age of a sample.
type FreshnessLevel string

const (
	FreshnessFresh     FreshnessLevel = "fresh"      // < 1 hour
	FreshnessRecent    FreshnessLevel = "recent"     // < 24 hours
	FreshnessStale     FreshnessLevel = "stale"      // < 1 week
	FreshnessVeryStale FreshnessLevel = "very_stale" // older
)

// Sample is a single indicator value together with its provenance.
// A Sample is immutable once constructed; every fetch attempt produces
// a new one.
type Sample struct {
	Value           float64        `json:"value"`
	Source          SourceKind     `json:"-"`
	SourceName      string         `json:"source"`
	FetchedAt       time.Time      `json:"fetched_at"`
	QualityScore    float64        `json:"quality_score"`
	FieldName       string         `json:"field_name,omitempty"`
	CacheAgeSeconds int            `json:"cache_age_seconds,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	Freshness       FreshnessLevel `json:"freshness_level"`
}

func newSample(value float64, source SourceKind, fetchedAt time.Time, score float64, field string, now time.Time) *Sample {
	return &Sample{
		Value:        value,
		Source:       source,
		SourceName:   source.String(),
		FetchedAt:    fetchedAt,
		QualityScore: score,
		FieldName:    field,
		Freshness:    freshnessAt(fetchedAt, now),
	}
}

func freshnessAt(fetchedAt, now time.Time) FreshnessLevel {
	age := now.Sub(fetchedAt)
	switch {
	case age < time.Hour:
		return FreshnessFresh
	case age < 24*time.Hour:
		return FreshnessRecent
	case age < 7*24*time.Hour:
		return FreshnessStale
	default:
		return FreshnessVeryStale
	}
}

// FromLiveAPI wraps a freshly fetched value. The quality score should be
// the validator confidence scaled to 0-100.
func FromLiveAPI(value float64, field string, qualityScore float64, warnings []string) *Sample {
	now := time.Now()
	s := newSample(value, SourceLiveAPI, now, qualityScore, field, now)
	s.Warnings = warnings
	return s
}

// FromCache wraps a cached value. The base score (90 fresh, 60 stale) is
// reduced by up to 20 points of age penalty and floored at 20.
func FromCache(value float64, field string, cachedAt time.Time, stale bool) *Sample {
	now := time.Now()
	source := SourceCache
	base := scoreCache
	if stale {
		source = SourceStaleCache
		base = scoreStaleCache
	}

	ageSeconds := int(now.Sub(cachedAt).Seconds())
	agePenalty := float64(ageSeconds) / 3600
	if agePenalty > 20 {
		agePenalty = 20
	}
	score := base - agePenalty
	if score < 20 {
		score = 20
	}

	s := newSample(value, source, cachedAt, score, field, now)
	s.CacheAgeSeconds = ageSeconds
	return s
}

// FromBaseline wraps a static baseline value (fixed quality 40). A zero
// baselineDate means "as of now".
func FromBaseline(value float64, field string, baselineDate time.Time) *Sample {
	now := time.Now()
	if baselineDate.IsZero() {
		baselineDate = now
	}
	return newSample(value, SourceBaseline, baselineDate, scoreBaseline, field, now)
}

// FromMock wraps demo data (fixed quality 20).
func FromMock(value float64, field string) *Sample {
	now := time.Now()
	return newSample(value, SourceMock, now, scoreMock, field, now)
}

// ConfidenceMultiplier maps a 0-100 quality score linearly onto [0.8, 1.0].
// Low-quality inputs damp the final score; nothing ever amplifies it.
func ConfidenceMultiplier(qualityScore float64) float64 {
	return 0.8 + (qualityScore/100)*0.2
}
