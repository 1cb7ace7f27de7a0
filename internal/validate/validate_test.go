package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExchangeRateHardBounds(t *testing.T) {
	assert.False(t, ExchangeRate(0, "JPY", false).IsValid)
	assert.False(t, ExchangeRate(-1, "JPY", false).IsValid)
	assert.False(t, ExchangeRate(200000, "JPY", false).IsValid)
	assert.False(t, ExchangeRate(math.NaN(), "JPY", false).IsValid)
	assert.False(t, ExchangeRate(math.Inf(1), "JPY", false).IsValid)
}

func TestExchangeRateInRange(t *testing.T) {
	res := ExchangeRate(4.5, "JPY", false)
	assert.True(t, res.IsValid)
	assert.Equal(t, 4.5, res.SanitizedValue)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Empty(t, res.Warnings)
}

func TestExchangeRateOutOfExpectedRange(t *testing.T) {
	// 50 TWD->JPY is implausible but not impossible.
	res := ExchangeRate(50, "JPY", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)

	// Strict mode turns the same value into a hard failure.
	res = ExchangeRate(50, "JPY", true)
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Errors)
}

func TestExchangeRateUnknownCurrency(t *testing.T) {
	res := ExchangeRate(4.5, "XYZ", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}

func TestFlightCostHardBounds(t *testing.T) {
	assert.False(t, FlightCost(500, "TPE", "NRT", false).IsValid)
	assert.False(t, FlightCost(600000, "TPE", "NRT", false).IsValid)
	assert.True(t, FlightCost(12000, "TPE", "NRT", false).IsValid)
}

func TestFlightCostRoutePlausibility(t *testing.T) {
	// 30000 TWD to nearby Hong Kong: suspiciously high.
	res := FlightCost(30000, "TPE", "HKG", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)

	// 1500... below hard minimum; use 1900 for the too-cheap check.
	res = FlightCost(1900, "TPE", "HKG", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)

	// 10000 TWD to London: suspiciously cheap for a long-haul route.
	res = FlightCost(10000, "TPE", "LHR", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)

	// Unknown route: no plausibility data, full confidence.
	res = FlightCost(10000, "TPE", "XXX", false)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestCostOfLivingTiers(t *testing.T) {
	assert.False(t, CostOfLiving(50, "Japan", "", false).IsValid)
	assert.False(t, CostOfLiving(25000, "Japan", "", false).IsValid)

	// $800/month in Singapore is suspicious.
	res := CostOfLiving(800, "Singapore", "", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)

	// $3000/month in Vietnam is suspicious the other way.
	res = CostOfLiving(3000, "Vietnam", "", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)

	// $300/month in Vietnam is implausibly cheap (below the hard min anyway
	// at 100, so use 350).
	res = CostOfLiving(350, "Vietnam", "", false)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)

	// Unknown country: no tier data.
	res = CostOfLiving(1500, "Atlantis", "", false)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestScoreRange(t *testing.T) {
	assert.True(t, Score(0).IsValid)
	assert.True(t, Score(100).IsValid)
	assert.False(t, Score(-0.1).IsValid)
	assert.False(t, Score(100.1).IsValid)
	assert.False(t, Score(math.NaN()).IsValid)
}

func TestOutliersZScore(t *testing.T) {
	values := []float64{10, 11, 9, 10, 12, 10, 11, 100}
	out := Outliers(values, OutlierZScore, 2.0)
	assert.Equal(t, []int{7}, out)
}

func TestOutliersIQR(t *testing.T) {
	values := []float64{10, 11, 9, 10, 12, 10, 11, 100}
	out := Outliers(values, OutlierIQR, 1.5)
	assert.Equal(t, []int{7}, out)
}

func TestOutliersNeedThreeValues(t *testing.T) {
	assert.Nil(t, Outliers([]float64{1, 100}, OutlierZScore, 2.0))
}

func TestOutliersUniformSeries(t *testing.T) {
	assert.Nil(t, Outliers([]float64{5, 5, 5, 5}, OutlierZScore, 2.0))
}
