package scoring

// Trend classifies score momentum for display.
type Trend string

const (
	TrendStrongUp   Trend = "strong_up"
	TrendUp         Trend = "up"
	TrendStable     Trend = "stable"
	TrendDown       Trend = "down"
	TrendStrongDown Trend = "strong_down"
)

// ClassifyTrend buckets a change percentage into a trend band.
func ClassifyTrend(change float64) Trend {
	switch {
	case change > 10:
		return TrendStrongUp
	case change > 3:
		return TrendUp
	case change > -3:
		return TrendStable
	case change > -10:
		return TrendDown
	default:
		return TrendStrongDown
	}
}

// Arrow returns the display glyph for a change percentage. Plain
// Unicode, no emoji, so tables align in any terminal.
func Arrow(change float64) string {
	switch ClassifyTrend(change) {
	case TrendStrongUp:
		return "▲▲"
	case TrendUp:
		return "▲"
	case TrendStable:
		return "●"
	case TrendDown:
		return "▼"
	default:
		return "▼▼"
	}
}
