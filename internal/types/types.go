package types

// Vendor identifies one of the competing platforms tracked by the feature matrix.
type Vendor string

const (
	VendorGlean     Vendor = "glean"
	VendorGoogle    Vendor = "google"
	VendorMicrosoft Vendor = "microsoft"
)

// Persisted document names
const (
	DocComparison = "comparison-data"
	DocHistory    = "historical-log"
	DocUpdateLog  = "weekly-update-log"
)

// DateLayout is the calendar-day format used by every persisted document
const DateLayout = "2006-01-02"

// VendorSet is the closed, ordered set of vendors a run scores.
// Order matters for log output and delta descriptions.
type VendorSet []Vendor

// Contains reports whether v is part of the set
func (s VendorSet) Contains(v Vendor) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
