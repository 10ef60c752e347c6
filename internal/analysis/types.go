package analysis

import "github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"

// MaxFeatureScore is the best score a vendor can get for a single feature
const MaxFeatureScore = 10

// FeatureScores holds one feature's score for every vendor
type FeatureScores map[types.Vendor]int

// Category is a weighted group of features
type Category struct {
	Weight   float64                  `json:"weight"`
	Features map[string]FeatureScores `json:"features"`
}

// FeatureMatrix maps category keys to categories
type FeatureMatrix map[string]Category

// VendorScore is a vendor's overall percentage and its weighted contribution per category
type VendorScore struct {
	Overall    float64            `json:"overall"`
	ByCategory map[string]float64 `json:"byCategory"`
}

// ScoreResult is the aggregator output for every vendor
type ScoreResult map[types.Vendor]VendorScore

// Overalls flattens the result to vendor -> overall, the shape used by the update log
func (r ScoreResult) Overalls() map[string]float64 {
	out := make(map[string]float64, len(r))
	for vendor, score := range r {
		out[string(vendor)] = score.Overall
	}
	return out
}

// Delta is the change of one vendor's overall score between two results
type Delta struct {
	Vendor types.Vendor `json:"vendor"`
	Value  float64      `json:"value"`
}

// Standing is a vendor's rank by overall score
type Standing struct {
	Rank    int          `json:"rank"`
	Vendor  types.Vendor `json:"vendor"`
	Overall float64      `json:"overall"`
}
