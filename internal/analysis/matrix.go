package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// Comparison is the parsed comparison-data document. The tracker only ever writes
// lastUpdated back; every other byte of the document is kept as read.
type Comparison struct {
	Version     json.RawMessage
	LastUpdated string
	Matrix      FeatureMatrix

	source []byte
}

type rawCategory struct {
	Weight   *float64                              `json:"weight"`
	Features map[string]map[string]json.RawMessage `json:"features"`
}

type rawCell struct {
	Score *float64 `json:"score"`
}

// ParseComparison decodes comparison-data and validates its feature matrix
func ParseComparison(data []byte, vendors types.VendorSet) (*Comparison, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.NewDataError("comparison-data is not a JSON object", map[string]interface{}{
			"cause": err.Error(),
		})
	}

	c := &Comparison{source: append([]byte(nil), data...)}

	if v, ok := top["version"]; ok {
		c.Version = v
	}
	if lu, ok := top["lastUpdated"]; ok {
		_ = json.Unmarshal(lu, &c.LastUpdated)
	}

	rawCategories, ok := top["categories"]
	if !ok {
		return nil, apperrors.NewDataError("comparison-data has no categories", nil)
	}

	var categories map[string]rawCategory
	if err := json.Unmarshal(rawCategories, &categories); err != nil {
		return nil, apperrors.NewDataError("categories is malformed", map[string]interface{}{
			"cause": err.Error(),
		})
	}

	matrix := make(FeatureMatrix, len(categories))
	for key, rc := range categories {
		if rc.Weight == nil {
			return nil, apperrors.NewDataError("category has no weight", map[string]interface{}{"category": key})
		}

		cat := Category{
			Weight:   *rc.Weight,
			Features: make(map[string]FeatureScores, len(rc.Features)),
		}

		for featureKey, cells := range rc.Features {
			scores := make(FeatureScores, len(vendors))
			for _, vendor := range vendors {
				cellData, ok := cells[string(vendor)]
				if !ok {
					return nil, apperrors.NewDataError("feature is missing a vendor score", map[string]interface{}{
						"category": key,
						"feature":  featureKey,
						"vendor":   vendor,
					})
				}
				score, err := parseCell(cellData)
				if err != nil {
					return nil, apperrors.NewDataError("feature has an invalid vendor score", map[string]interface{}{
						"category": key,
						"feature":  featureKey,
						"vendor":   vendor,
						"cause":    err.Error(),
					})
				}
				scores[vendor] = score
			}
			cat.Features[featureKey] = scores
		}

		matrix[key] = cat
	}

	if err := matrix.Validate(vendors); err != nil {
		return nil, err
	}

	c.Matrix = matrix
	return c, nil
}

func parseCell(data json.RawMessage) (int, error) {
	var cell rawCell
	if err := json.Unmarshal(data, &cell); err != nil {
		return 0, err
	}
	if cell.Score == nil {
		return 0, fmt.Errorf("score is missing")
	}
	s := *cell.Score
	if s != math.Trunc(s) {
		return 0, fmt.Errorf("score %v is not an integer", s)
	}
	if s < 0 || s > MaxFeatureScore {
		return 0, fmt.Errorf("score %v is outside [0,%d]", s, MaxFeatureScore)
	}
	return int(s), nil
}

// Validate checks the structural invariants the aggregator relies on
func (m FeatureMatrix) Validate(vendors types.VendorSet) error {
	if len(vendors) == 0 {
		return apperrors.NewDataError("vendor set is empty", nil)
	}
	if len(m) == 0 {
		return apperrors.NewDataError("feature matrix has no categories", nil)
	}

	totalWeight := 0.0
	for key, cat := range m {
		if math.IsNaN(cat.Weight) || math.IsInf(cat.Weight, 0) || cat.Weight <= 0 {
			return apperrors.NewDataError("category weight must be a positive number", map[string]interface{}{
				"category": key,
				"weight":   cat.Weight,
			})
		}
		if len(cat.Features) == 0 {
			return apperrors.NewDataError("category has no features", map[string]interface{}{"category": key})
		}
		for featureKey, scores := range cat.Features {
			for _, vendor := range vendors {
				score, ok := scores[vendor]
				if !ok {
					return apperrors.NewDataError("feature is missing a vendor score", map[string]interface{}{
						"category": key,
						"feature":  featureKey,
						"vendor":   vendor,
					})
				}
				if score < 0 || score > MaxFeatureScore {
					return apperrors.NewDataError("feature score out of range", map[string]interface{}{
						"category": key,
						"feature":  featureKey,
						"vendor":   vendor,
						"score":    score,
					})
				}
			}
		}
		totalWeight += cat.Weight
	}

	if totalWeight <= 0 {
		return apperrors.NewDataError("total category weight is zero", nil)
	}
	return nil
}

// CategoryKeys returns the category keys in sorted order
func (m FeatureMatrix) CategoryKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VersionString renders the version field for logs, whether it was stored as a string or a number
func (c *Comparison) VersionString() string {
	var s string
	if err := json.Unmarshal(c.Version, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(c.Version))
}

// Touch sets lastUpdated to the given calendar date
func (c *Comparison) Touch(date string) {
	c.LastUpdated = date
}

// Encode writes the document back with lastUpdated set, leaving member order,
// number formatting and every uninterpreted field untouched
func (c *Comparison) Encode() ([]byte, error) {
	out, err := encoding.PatchMember(c.source, "lastUpdated", c.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("encode lastUpdated: %w", err)
	}
	return out, nil
}
