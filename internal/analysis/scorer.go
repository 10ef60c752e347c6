package analysis

import (
	"sort"

	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// ComputeScores turns a feature matrix into per-category weighted contributions and an
// overall percentage for every vendor.
//
// A category's contribution is (sum of the vendor's feature scores / (features*10)) * weight.
// The overall score is the sum of contributions divided by the total weight, times 100.
// Categories are accumulated in sorted key order so that the floating point result does not
// depend on map iteration order.
func ComputeScores(m FeatureMatrix, vendors types.VendorSet) (ScoreResult, error) {
	if err := m.Validate(vendors); err != nil {
		return nil, err
	}

	result := make(ScoreResult, len(vendors))
	totals := make(map[types.Vendor]float64, len(vendors))
	for _, vendor := range vendors {
		result[vendor] = VendorScore{ByCategory: make(map[string]float64, len(m))}
	}

	totalWeight := 0.0
	for _, key := range m.CategoryKeys() {
		cat := m[key]
		totalWeight += cat.Weight
		maxScore := float64(len(cat.Features) * MaxFeatureScore)

		sums := categorySums(cat, vendors)
		for _, vendor := range vendors {
			contribution := float64(sums[vendor]) / maxScore * cat.Weight
			result[vendor].ByCategory[key] = contribution
			totals[vendor] += contribution
		}
	}

	if totalWeight == 0 {
		return nil, apperrors.NewDataError("total category weight is zero", nil)
	}

	for _, vendor := range vendors {
		vs := result[vendor]
		vs.Overall = totals[vendor] / totalWeight * 100
		result[vendor] = vs
	}

	return result, nil
}

// categorySums adds up integer feature scores; integer addition keeps feature order irrelevant
func categorySums(cat Category, vendors types.VendorSet) map[types.Vendor]int {
	sums := make(map[types.Vendor]int, len(vendors))
	for _, scores := range cat.Features {
		for _, vendor := range vendors {
			sums[vendor] += scores[vendor]
		}
	}
	return sums
}

// CategoryPercentages normalises each weighted contribution back to a 0-100 scale per category
func CategoryPercentages(result ScoreResult, m FeatureMatrix) map[types.Vendor]map[string]float64 {
	out := make(map[types.Vendor]map[string]float64, len(result))
	for vendor, vs := range result {
		pct := make(map[string]float64, len(vs.ByCategory))
		for key, contribution := range vs.ByCategory {
			cat, ok := m[key]
			if !ok || cat.Weight == 0 {
				continue
			}
			pct[key] = contribution / cat.Weight * 100
		}
		out[vendor] = pct
	}
	return out
}

// Standings ranks vendors by overall score, highest first. Equal scores share a rank
// and keep declaration order.
func Standings(result ScoreResult, vendors types.VendorSet) []Standing {
	standings := make([]Standing, 0, len(vendors))
	for _, vendor := range vendors {
		vs, ok := result[vendor]
		if !ok {
			continue
		}
		standings = append(standings, Standing{Vendor: vendor, Overall: vs.Overall})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Overall > standings[j].Overall
	})

	for i := range standings {
		if i > 0 && standings[i].Overall == standings[i-1].Overall {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = i + 1
	}

	return standings
}
