package quality

import "time"

// Indicator names the six data slots tracked per destination.
type Indicator string

const (
	IndicatorExchange Indicator = "exchange"
	IndicatorFlight   Indicator = "flight"
	IndicatorCol      Indicator = "col"
	IndicatorSafety   Indicator = "safety"
	IndicatorVisa     Indicator = "visa"
	IndicatorAccess   Indicator = "access"
)

// Quality aggregation weights. These mirror the scoring weights: the
// expanded set applies as soon as any of safety/visa/access is present,
// the legacy set otherwise. Weights are renormalized over present slots.
var (
	expandedQualityWeights = map[Indicator]float64{
		IndicatorExchange: 0.20,
		IndicatorFlight:   0.15,
		IndicatorCol:      0.35,
		IndicatorSafety:   0.15,
		IndicatorVisa:     0.10,
		IndicatorAccess:   0.05,
	}
	legacyQualityWeights = map[Indicator]float64{
		IndicatorExchange: 0.30,
		IndicatorFlight:   0.20,
		IndicatorCol:      0.50,
	}
)

// QualityLevel categorizes an overall quality score.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent" // >= 80
	QualityGood      QualityLevel = "good"      // >= 60
	QualityFair      QualityLevel = "fair"      // >= 40
	QualityPoor      QualityLevel = "poor"
)

// DestinationQuality tracks provenance for every indicator of one
// destination and derives a single overall quality score. The overall
// score is recomputed on every slot assignment so it is never stale
// relative to its inputs.
type DestinationQuality struct {
	DestinationKey string
	Name           string

	samples      map[Indicator]*Sample
	overallScore float64
	calculatedAt time.Time
}

// NewDestinationQuality creates an empty quality tracker for a destination.
func NewDestinationQuality(key, name string) *DestinationQuality {
	return &DestinationQuality{
		DestinationKey: key,
		Name:           name,
		samples:        make(map[Indicator]*Sample, 6),
		calculatedAt:   time.Now(),
	}
}

// Set assigns the sample for an indicator slot and recomputes the overall
// score. A nil sample clears the slot.
func (q *DestinationQuality) Set(ind Indicator, s *Sample) {
	if s == nil {
		delete(q.samples, ind)
	} else {
		q.samples[ind] = s
	}
	q.recompute()
}

// Get returns the sample for an indicator slot, or nil.
func (q *DestinationQuality) Get(ind Indicator) *Sample {
	return q.samples[ind]
}

// HasAny reports whether any slot is populated.
func (q *DestinationQuality) HasAny() bool {
	return len(q.samples) > 0
}

// HasExpanded reports whether any of the safety/visa/access slots is set.
func (q *DestinationQuality) HasExpanded() bool {
	return q.samples[IndicatorSafety] != nil ||
		q.samples[IndicatorVisa] != nil ||
		q.samples[IndicatorAccess] != nil
}

// OverallScore returns the weighted mean quality score over present slots,
// in [0, 100]. Zero when no slot is populated.
func (q *DestinationQuality) OverallScore() float64 {
	return q.overallScore
}

// Level returns the quality level category for the overall score.
func (q *DestinationQuality) Level() QualityLevel {
	switch {
	case q.overallScore >= 80:
		return QualityExcellent
	case q.overallScore >= 60:
		return QualityGood
	case q.overallScore >= 40:
		return QualityFair
	default:
		return QualityPoor
	}
}

// PrimarySource returns the worst source among present slots, the idea
// being that a chain is as trustworthy as its weakest link.
func (q *DestinationQuality) PrimarySource() SourceKind {
	if len(q.samples) == 0 {
		return SourceMock
	}
	worst := SourceLiveAPI
	for _, s := range q.samples {
		if s.Source < worst {
			worst = s.Source
		}
	}
	return worst
}

// FreshnessSummary returns the freshness level per present indicator.
func (q *DestinationQuality) FreshnessSummary() map[Indicator]FreshnessLevel {
	out := make(map[Indicator]FreshnessLevel, len(q.samples))
	for ind, s := range q.samples {
		out[ind] = s.Freshness
	}
	return out
}

// SourceNames returns the source name per present indicator, for
// persistence alongside the snapshot.
func (q *DestinationQuality) SourceNames() map[Indicator]string {
	out := make(map[Indicator]string, len(q.samples))
	for ind, s := range q.samples {
		out[ind] = s.Source.String()
	}
	return out
}

func (q *DestinationQuality) recompute() {
	weights := legacyQualityWeights
	if q.HasExpanded() {
		weights = expandedQualityWeights
	}

	var weighted, total float64
	for ind, w := range weights {
		s, ok := q.samples[ind]
		if !ok {
			continue
		}
		weighted += s.QualityScore * w
		total += w
	}

	if total == 0 {
		q.overallScore = 0
	} else {
		q.overallScore = weighted / total
	}
	q.calculatedAt = time.Now()
}

// Summary aggregates quality statistics across a fleet of destinations
// for the health/quality footer.
type Summary struct {
	AverageQuality        float64                `json:"average_quality"`
	MinQuality            float64                `json:"min_quality"`
	MaxQuality            float64                `json:"max_quality"`
	SourceDistribution    map[string]int         `json:"source_distribution"`
	FreshnessDistribution map[FreshnessLevel]int `json:"freshness_distribution"`
	TotalDestinations     int                    `json:"total_destinations"`
}

// Summarize computes aggregate statistics over destination qualities.
func Summarize(qualities []*DestinationQuality) Summary {
	sum := Summary{
		SourceDistribution:    make(map[string]int),
		FreshnessDistribution: make(map[FreshnessLevel]int),
		TotalDestinations:     len(qualities),
	}
	if len(qualities) == 0 {
		return sum
	}

	sum.MinQuality = qualities[0].OverallScore()
	sum.MaxQuality = qualities[0].OverallScore()
	var total float64
	for _, q := range qualities {
		score := q.OverallScore()
		total += score
		if score < sum.MinQuality {
			sum.MinQuality = score
		}
		if score > sum.MaxQuality {
			sum.MaxQuality = score
		}
		sum.SourceDistribution[q.PrimarySource().String()]++
		for _, level := range q.FreshnessSummary() {
			sum.FreshnessDistribution[level]++
		}
	}
	sum.AverageQuality = total / float64(len(qualities))
	return sum
}
