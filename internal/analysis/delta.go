package analysis

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// Deltas compares overall scores against a previous result. Vendors absent from
// either side are skipped.
func Deltas(current, previous ScoreResult, vendors types.VendorSet) []Delta {
	deltas := make([]Delta, 0, len(vendors))
	for _, vendor := range vendors {
		cur, ok := current[vendor]
		if !ok {
			continue
		}
		prev, ok := previous[vendor]
		if !ok {
			continue
		}
		deltas = append(deltas, Delta{Vendor: vendor, Value: cur.Overall - prev.Overall})
	}
	return deltas
}

// Significant reports whether the delta's magnitude strictly exceeds the threshold
func (d Delta) Significant(threshold float64) bool {
	return math.Abs(d.Value) > threshold
}

// FormatDelta renders a delta to one decimal place with an explicit plus sign when positive
func FormatDelta(d float64) string {
	if d > 0 {
		return fmt.Sprintf("+%.1f", d)
	}
	return fmt.Sprintf("%.1f", d)
}
