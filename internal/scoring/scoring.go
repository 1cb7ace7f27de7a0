// Package scoring turns raw indicator values into per-component scores
// and a weighted composite per destination. Component calculators never
// fail: invalid input degrades to a neutral low-confidence score so one
// bad indicator cannot sink a whole ranking run.
package scoring

import (
	"math"

	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/validate"
)

// Indicator weights. The expanded set applies when safety, visa, and
// accessibility are all present: the richer signals displace part of
// cost-of-living's dominance.
const (
	legacyExchangeWeight = 0.30
	legacyFlightWeight   = 0.20
	legacyColWeight      = 0.50

	expandedExchangeWeight = 0.20
	expandedFlightWeight   = 0.15
	expandedColWeight      = 0.35
	expandedSafetyWeight   = 0.15
	expandedVisaWeight     = 0.10
	expandedAccessWeight   = 0.05
)

// Absolute score anchors. Flight costs in TWD round-trip, cost of living
// in USD per month.
const (
	flightAbsMin = 3000
	flightAbsMax = 50000

	colAbsMin = 500
	colAbsMax = 4000
)

// Scoring version tags persisted with each snapshot.
const (
	VersionLegacy   = "legacy"
	VersionExpanded = "expanded"
)

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Component holds one indicator's contribution to the composite.
type Component struct {
	Score      float64 `json:"score"`
	Change     float64 `json:"change"`
	Current    float64 `json:"current"`
	Baseline   float64 `json:"baseline"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

// Inputs carries everything needed to score one destination.
type Inputs struct {
	CurrentExchange  float64
	BaselineExchange float64
	CurrentFlight    float64
	BaselineFlight   float64
	CurrentCol       float64
	BaselineCol      float64

	// Currency and Country feed plausibility validation.
	Currency string
	Country  string

	// Expanded indicators, nil when not available for the destination.
	Safety *float64
	Visa   *float64
	Access *float64

	// UseExpanded enables the expanded weight set when all three
	// expanded indicators are present.
	UseExpanded bool

	// Quality, when populated, supplies the quality multiplier; otherwise
	// the multiplier is derived from component confidences.
	Quality *quality.DestinationQuality
}

// Result is the scored outcome for one destination.
type Result struct {
	FinalScore        float64 `json:"final_score"`
	RawScore          float64 `json:"raw_score"`
	OverallChange     float64 `json:"overall_change"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	Confidence        float64 `json:"confidence"`
	ScoringVersion    string  `json:"scoring_version"`

	Exchange Component `json:"exchange"`
	Flight   Component `json:"flight"`
	Col      Component `json:"col"`

	Safety *Component `json:"safety,omitempty"`
	Visa   *Component `json:"visa,omitempty"`
	Access *Component `json:"access,omitempty"`
}

// HasExpanded reports whether the result was scored in expanded mode.
func (r *Result) HasExpanded() bool {
	return r.ScoringVersion == VersionExpanded
}

// ExchangeScore scores currency momentum: how far the rate has moved
// from baseline. A flat rate scores 50; +20% momentum scores 70.
// Invalid input yields the neutral default (50, 0, 0.5).
func ExchangeScore(current, baseline float64, currency string) (score, change, confidence float64) {
	res := validate.ExchangeRate(current, currency, false)
	if !res.IsValid || baseline <= 0 {
		return 50, 0, 0.5
	}
	change = (current - baseline) / baseline * 100
	return clip(change+50, 0, 100), change, res.Confidence
}

// FlightScore blends 70% cost momentum with 30% absolute affordability.
// Change is reported with cheaper-is-positive polarity.
func FlightScore(current, baseline float64, origin, destination string) (score, change, confidence float64) {
	res := validate.FlightCost(current, origin, destination, false)
	if !res.IsValid || baseline <= 0 {
		return 50, 0, 0.5
	}
	costChange := (current - baseline) / baseline * 100
	momentum := clip(50-costChange, 0, 100)
	absolute := clip((flightAbsMax-current)/(flightAbsMax-flightAbsMin)*100, 0, 100)
	return 0.7*momentum + 0.3*absolute, -costChange, res.Confidence
}

// ColScore blends 80% absolute affordability with 20% momentum. Absolute
// dominates because absolute affordability matters more than short-term
// CoL drift. Change is reported with cheaper-is-positive polarity.
func ColScore(current, baseline float64, country, city string) (score, change, confidence float64) {
	res := validate.CostOfLiving(current, country, city, false)
	if !res.IsValid || baseline <= 0 {
		return 50, 0, 0.5
	}
	colChange := (current - baseline) / baseline * 100
	momentum := clip(50-colChange, 0, 100)
	absolute := clip((colAbsMax-current)/(colAbsMax-colAbsMin)*100, 0, 100)
	return 0.8*absolute + 0.2*momentum, -colChange, res.Confidence
}

// SafetyScore passes through a pre-normalized 0-100 safety index.
// Confidence is lower in the ambiguous 30-70 mid-band than at the
// extremes, where the index is more decisive.
func SafetyScore(value *float64) (score, confidence float64) {
	if value == nil || *value < 0 {
		return 50, 0.5
	}
	score = clip(*value, 0, 100)
	if score > 30 && score < 70 {
		return score, 0.85
	}
	return score, 0.92
}

// VisaScore passes through a pre-mapped visa score
// (visa-free=100, visa-on-arrival=80, e-visa=60, required=20).
func VisaScore(value *float64) (score, confidence float64) {
	if value == nil || *value < 0 {
		return 50, 0.5
	}
	return clip(*value, 0, 100), 0.95
}

// AccessScore passes through a pre-normalized accessibility index.
func AccessScore(value *float64) (score, confidence float64) {
	if value == nil || *value < 0 {
		return 50, 0.5
	}
	return clip(*value, 0, 100), 0.85
}

// Score computes the composite destination score.
func Score(in Inputs) Result {
	exScore, exChange, exConf := ExchangeScore(in.CurrentExchange, in.BaselineExchange, in.Currency)
	flScore, flChange, flConf := FlightScore(in.CurrentFlight, in.BaselineFlight, "TPE", "")
	colScore, colChange, colConf := ColScore(in.CurrentCol, in.BaselineCol, in.Country, "")

	hasExpanded := in.UseExpanded && in.Safety != nil && in.Visa != nil && in.Access != nil

	r := Result{
		ScoringVersion: VersionLegacy,
		Exchange: Component{
			Score: round1(exScore), Change: round1(exChange),
			Current: in.CurrentExchange, Baseline: in.BaselineExchange,
			Weight: legacyExchangeWeight, Confidence: round2(exConf),
		},
		Flight: Component{
			Score: round1(flScore), Change: round1(flChange),
			Current: in.CurrentFlight, Baseline: in.BaselineFlight,
			Weight: legacyFlightWeight, Confidence: round2(flConf),
		},
		Col: Component{
			Score: round1(colScore), Change: round1(colChange),
			Current: in.CurrentCol, Baseline: in.BaselineCol,
			Weight: legacyColWeight, Confidence: round2(colConf),
		},
	}

	var rawScore, componentConf float64
	if hasExpanded {
		r.ScoringVersion = VersionExpanded
		r.Exchange.Weight = expandedExchangeWeight
		r.Flight.Weight = expandedFlightWeight
		r.Col.Weight = expandedColWeight

		saScore, saConf := SafetyScore(in.Safety)
		viScore, viConf := VisaScore(in.Visa)
		acScore, acConf := AccessScore(in.Access)

		r.Safety = &Component{
			Score: round1(saScore), Current: deref(in.Safety),
			Weight: expandedSafetyWeight, Confidence: round2(saConf),
		}
		r.Visa = &Component{
			Score: round1(viScore), Current: deref(in.Visa),
			Weight: expandedVisaWeight, Confidence: round2(viConf),
		}
		r.Access = &Component{
			Score: round1(acScore), Current: deref(in.Access),
			Weight: expandedAccessWeight, Confidence: round2(acConf),
		}

		rawScore = exScore*expandedExchangeWeight + flScore*expandedFlightWeight +
			colScore*expandedColWeight + saScore*expandedSafetyWeight +
			viScore*expandedVisaWeight + acScore*expandedAccessWeight
		componentConf = exConf*expandedExchangeWeight + flConf*expandedFlightWeight +
			colConf*expandedColWeight + saConf*expandedSafetyWeight +
			viConf*expandedVisaWeight + acConf*expandedAccessWeight
	} else {
		rawScore = exScore*legacyExchangeWeight + flScore*legacyFlightWeight + colScore*legacyColWeight
		componentConf = exConf*legacyExchangeWeight + flConf*legacyFlightWeight + colConf*legacyColWeight
	}

	var multiplier, overallConf float64
	if in.Quality != nil && in.Quality.HasAny() {
		multiplier = quality.ConfidenceMultiplier(in.Quality.OverallScore())
		overallConf = in.Quality.OverallScore() / 100
	} else {
		multiplier = quality.ConfidenceMultiplier(componentConf * 100)
		overallConf = componentConf
	}

	r.RawScore = round1(rawScore)
	r.FinalScore = round1(rawScore * multiplier)
	r.QualityMultiplier = round3(multiplier)
	r.Confidence = round2(overallConf)

	// Always the 3-way mean of the momentum indicators: safety, visa,
	// and accessibility have no momentum concept, so a destination's
	// "change" is purely financial even in expanded mode.
	r.OverallChange = round1((exChange + flChange + colChange) / 3)

	return r
}

// Validate re-checks a complete result, catching score corruption from
// bad persistence or arithmetic drift.
func (r *Result) Validate() []string {
	var errs []string
	check := func(name string, score float64) {
		if res := validate.Score(score); !res.IsValid {
			errs = append(errs, name+": "+res.Errors[0])
		}
	}
	check("final_score", r.FinalScore)
	check("exchange", r.Exchange.Score)
	check("flight", r.Flight.Score)
	check("col", r.Col.Score)
	return errs
}

// Delta holds score movement between two runs of the same destination.
type Delta struct {
	FinalScore    float64 `json:"final_score"`
	ExchangeScore float64 `json:"exchange_score"`
	FlightScore   float64 `json:"flight_score"`
	ColScore      float64 `json:"col_score"`
}

// DeltaBetween computes score movement from previous to current.
func DeltaBetween(current, previous *Result) Delta {
	return Delta{
		FinalScore:    round1(current.FinalScore - previous.FinalScore),
		ExchangeScore: round1(current.Exchange.Score - previous.Exchange.Score),
		FlightScore:   round1(current.Flight.Score - previous.Flight.Score),
		ColScore:      round1(current.Col.Score - previous.Col.Score),
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
