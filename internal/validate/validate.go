// Package validate sanity-checks raw indicator values before they reach
// scoring. Hard failures mean the value must be discarded and the caller
// should fall back to the next source tier; soft checks only lower
// confidence and record warnings.
package validate

import (
	"fmt"
	"math"
)

// Hard bounds per value kind.
const (
	minExchangeRate = 0.0001
	maxExchangeRate = 100000

	minFlightCostTWD = 1000
	maxFlightCostTWD = 500000

	minColMonthlyUSD = 100
	maxColMonthlyUSD = 20000
)

// Expected exchange rate ranges per currency, expressed as 1 TWD = X
// foreign currency. Values outside the range are implausible for the
// currency but not impossible, so non-strict validation only penalizes
// confidence.
var exchangeRateRanges = map[string][2]float64{
	// East Asia
	"JPY": {3.5, 6.0},
	"KRW": {35.0, 50.0},
	"HKD": {0.20, 0.30},
	"CNY": {0.18, 0.28},
	// Southeast Asia
	"THB": {0.85, 1.25},
	"VND": {700.0, 900.0},
	"MYR": {0.11, 0.17},
	"IDR": {400.0, 600.0},
	"PHP": {1.5, 2.2},
	"SGD": {0.035, 0.050},
	"KHR": {100.0, 160.0},
	"LAK": {550.0, 800.0},
	// South Asia
	"INR": {2.2, 3.2},
	"LKR": {8.0, 12.0},
	"NPR": {3.5, 5.0},
	// Europe
	"GBP": {0.020, 0.030},
	"EUR": {0.024, 0.035},
	"CHF": {0.024, 0.032},
	"CZK": {0.60, 0.85},
	"PLN": {0.10, 0.15},
	"HUF": {9.0, 14.0},
	"RON": {0.13, 0.17},
	"BGN": {0.050, 0.065},
	"ALL": {2.5, 3.5},
	"GEL": {0.070, 0.100},
	// Americas
	"USD": {0.028, 0.038},
	"CAD": {0.038, 0.052},
	"MXN": {0.45, 0.65},
	"COP": {100.0, 150.0},
	"ARS": {15.0, 60.0},
	"BRL": {0.13, 0.19},
	"PEN": {0.10, 0.14},
	"CRC": {13.0, 20.0},
	"CLP": {24.0, 36.0},
	// Middle East
	"AED": {0.10, 0.14},
	"TRY": {0.8, 1.8},
	"ILS": {0.10, 0.14},
	"EGP": {1.2, 2.0},
	// Africa
	"MAD": {0.28, 0.38},
	"ZAR": {0.45, 0.70},
	"KES": {3.5, 4.8},
	// Oceania
	"AUD": {0.040, 0.060},
	"NZD": {0.045, 0.065},
	// Nordic
	"ISK": {3.8, 5.0},
}

// Route plausibility sets for flights out of TPE.
var (
	nearbyAirports = map[string]bool{
		"HKG": true, "MNL": true, "SGN": true, "BKK": true, "KUL": true, "SIN": true,
	}
	farAirports = map[string]bool{
		"LHR": true, "CDG": true, "FRA": true, "LAX": true, "EZE": true, "BOG": true,
	}
)

// Cost-of-living plausibility tiers by country.
var (
	highColCountries = map[string]bool{
		"Singapore": true, "United Kingdom": true, "United States": true,
		"Australia": true, "Hong Kong": true, "Netherlands": true,
		"France": true, "Germany": true, "Switzerland": true, "Iceland": true,
		"Israel": true, "Canada": true, "New Zealand": true,
	}
	lowColCountries = map[string]bool{
		"Vietnam": true, "Indonesia": true, "India": true, "Philippines": true,
		"Thailand": true, "Colombia": true, "Argentina": true, "Mexico": true,
		"Georgia": true, "Albania": true, "Bulgaria": true, "Romania": true,
		"Cambodia": true, "Laos": true, "Nepal": true, "Sri Lanka": true,
		"Egypt": true, "Morocco": true, "Kenya": true, "Peru": true,
	}
)

// Result is the outcome of validating one raw value.
type Result struct {
	IsValid        bool
	SanitizedValue float64
	Errors         []string
	Warnings       []string
	Confidence     float64 // 0-1
}

func success(value, confidence float64, warnings []string) Result {
	return Result{
		IsValid:        true,
		SanitizedValue: value,
		Warnings:       warnings,
		Confidence:     confidence,
	}
}

func failure(errs ...string) Result {
	return Result{IsValid: false, Errors: errs}
}

// ExchangeRate validates a TWD-to-foreign exchange rate. In strict mode,
// values outside the currency's expected range are hard failures; in
// non-strict mode they keep the value with reduced confidence.
func ExchangeRate(rate float64, currency string, strict bool) Result {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return failure(fmt.Sprintf("exchange rate is not a finite number: %v", rate))
	}
	if rate < minExchangeRate {
		return failure(fmt.Sprintf("rate %g is below minimum %g", rate, minExchangeRate))
	}
	if rate > maxExchangeRate {
		return failure(fmt.Sprintf("rate %g is above maximum %d", rate, maxExchangeRate))
	}

	confidence := 1.0
	var warnings []string

	if bounds, ok := exchangeRateRanges[currency]; ok {
		if rate < bounds[0] || rate > bounds[1] {
			msg := fmt.Sprintf("rate %g for %s is outside expected range (%g-%g)",
				rate, currency, bounds[0], bounds[1])
			if strict {
				return failure(msg)
			}
			warnings = append(warnings, msg)
			confidence *= 0.7
		}
	} else {
		warnings = append(warnings, fmt.Sprintf("unknown currency %s, cannot validate expected range", currency))
		confidence *= 0.9
	}

	return success(rate, confidence, warnings)
}

// FlightCost validates a round-trip flight cost in TWD with soft route
// plausibility checks against the origin/destination airports.
func FlightCost(cost float64, origin, destination string, strict bool) Result {
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return failure(fmt.Sprintf("flight cost is not a finite number: %v", cost))
	}
	if cost < minFlightCostTWD {
		return failure(fmt.Sprintf("cost %g TWD is below minimum %d", cost, minFlightCostTWD))
	}
	if cost > maxFlightCostTWD {
		return failure(fmt.Sprintf("cost %g TWD is above maximum %d", cost, maxFlightCostTWD))
	}

	confidence := 1.0
	var warnings []string
	appendWarning := func(msg string, penalty float64) {
		warnings = append(warnings, msg)
		confidence *= penalty
	}

	if nearbyAirports[destination] {
		if cost > 25000 {
			appendWarning(fmt.Sprintf("cost %g TWD for nearby destination %s seems high", cost, destination), 0.8)
		} else if cost < 2000 {
			appendWarning(fmt.Sprintf("cost %g TWD for %s seems unusually low", cost, destination), 0.7)
		}
	}
	if farAirports[destination] {
		if cost < 15000 {
			appendWarning(fmt.Sprintf("cost %g TWD for distant destination %s seems low", cost, destination), 0.7)
		} else if cost > 100000 {
			appendWarning(fmt.Sprintf("cost %g TWD for %s seems unusually high", cost, destination), 0.8)
		}
	}

	if strict && len(warnings) > 0 {
		return failure(warnings...)
	}
	return success(cost, confidence, warnings)
}

// CostOfLiving validates a monthly cost of living in USD with soft checks
// against the country's historical cost tier.
func CostOfLiving(col float64, country, city string, strict bool) Result {
	if math.IsNaN(col) || math.IsInf(col, 0) {
		return failure(fmt.Sprintf("cost of living is not a finite number: %v", col))
	}
	if col < minColMonthlyUSD {
		return failure(fmt.Sprintf("CoL $%g/month is below minimum $%d", col, minColMonthlyUSD))
	}
	if col > maxColMonthlyUSD {
		return failure(fmt.Sprintf("CoL $%g/month is above maximum $%d", col, maxColMonthlyUSD))
	}

	confidence := 1.0
	var warnings []string
	appendWarning := func(msg string, penalty float64) {
		warnings = append(warnings, msg)
		confidence *= penalty
	}

	if highColCountries[country] && col < 1500 {
		appendWarning(fmt.Sprintf("CoL $%g/month for %s seems low for this region", col, country), 0.8)
	}
	if lowColCountries[country] {
		if col > 2000 {
			appendWarning(fmt.Sprintf("CoL $%g/month for %s seems high for this region", col, country), 0.8)
		} else if col < 400 {
			appendWarning(fmt.Sprintf("CoL $%g/month for %s seems unusually low", col, country), 0.7)
		}
	}

	if strict && len(warnings) > 0 {
		return failure(warnings...)
	}
	return success(col, confidence, warnings)
}

// Score validates a 0-100 score. No soft checks.
func Score(score float64) Result {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return failure(fmt.Sprintf("score is not a finite number: %v", score))
	}
	if score < 0 || score > 100 {
		return failure(fmt.Sprintf("score %g is outside valid range [0, 100]", score))
	}
	return success(score, 1.0, nil)
}
