package device

import "math"

// Round3 rounds a power figure to watt resolution for outbound documents.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
