package scoring

// Badge labels a notable property of a scored destination.
type Badge string

const (
	BadgeExcellent     Badge = "EXCELLENT"
	BadgeHotDeal       Badge = "HOT DEAL"
	BadgeCurrencyWin   Badge = "CURRENCY WIN"
	BadgeFlightDeal    Badge = "FLIGHT DEAL"
	BadgeDeflation     Badge = "DEFLATION"
	BadgeSafeHaven     Badge = "SAFE HAVEN"
	BadgeEasyEntry     Badge = "EASY ENTRY"
	BadgeNomadVisa     Badge = "NOMAD VISA"
	BadgeWellConnected Badge = "WELL CONNECTED"
)

// Badge thresholds. The change-based badges use strict greater-than;
// the level-based badges are inclusive.
const (
	excellentThreshold     = 85.0
	hotDealThreshold       = 15.0
	currencyWinThreshold   = 20.0
	flightDealThreshold    = 25.0
	deflationThreshold     = 15.0
	safeHavenThreshold     = 85.0
	easyEntryThreshold     = 100.0
	wellConnectedThreshold = 80.0
)

// AssignBadges derives the badge set from a score result. It is a pure
// function of the result plus the destination's nomad-visa flag; multiple
// badges may co-occur.
func AssignBadges(r *Result, hasNomadVisa bool) []Badge {
	var badges []Badge

	if r.FinalScore >= excellentThreshold {
		badges = append(badges, BadgeExcellent)
	}
	if r.OverallChange > hotDealThreshold {
		badges = append(badges, BadgeHotDeal)
	}
	if r.Exchange.Change > currencyWinThreshold {
		badges = append(badges, BadgeCurrencyWin)
	}
	if r.Flight.Change > flightDealThreshold {
		badges = append(badges, BadgeFlightDeal)
	}
	if r.Col.Change > deflationThreshold {
		badges = append(badges, BadgeDeflation)
	}

	if r.Safety != nil && r.Safety.Score >= safeHavenThreshold {
		badges = append(badges, BadgeSafeHaven)
	}
	if r.Visa != nil && r.Visa.Score >= easyEntryThreshold {
		badges = append(badges, BadgeEasyEntry)
	}
	if hasNomadVisa {
		badges = append(badges, BadgeNomadVisa)
	}
	if r.Access != nil && r.Access.Score >= wellConnectedThreshold {
		badges = append(badges, BadgeWellConnected)
	}

	return badges
}

// BadgeStrings converts a badge slice for persistence.
func BadgeStrings(badges []Badge) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = string(b)
	}
	return out
}
