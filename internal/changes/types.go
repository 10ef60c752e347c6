package changes

import "github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"

// Fetch outcomes
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Fingerprint is the recorded outcome of fetching one documentation URL.
// JSON keys match the weekly-update-log written by earlier versions of the checker.
type Fingerprint struct {
	Status       string `json:"status"`
	Hash         string `json:"hash,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	Size         int    `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
}

// OK reports whether the fetch succeeded
func (f Fingerprint) OK() bool {
	return f.Status == StatusSuccess
}

// State maps vendor -> URL -> fingerprint. A run replaces it wholesale.
type State map[types.Vendor]map[string]Fingerprint

// Lookup returns the fingerprint recorded for a URL
func (s State) Lookup(vendor types.Vendor, url string) (Fingerprint, bool) {
	urls, ok := s[vendor]
	if !ok {
		return Fingerprint{}, false
	}
	fp, ok := urls[url]
	return fp, ok
}

// Record stores a fingerprint
func (s State) Record(vendor types.Vendor, url string, fp Fingerprint) {
	urls, ok := s[vendor]
	if !ok {
		urls = make(map[string]Fingerprint)
		s[vendor] = urls
	}
	urls[url] = fp
}

// Target is one monitored URL and the vendor it documents
type Target struct {
	Vendor types.Vendor
	URL    string
}

// Event is a detected content change
type Event struct {
	Platform    types.Vendor `json:"platform"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
}

// Failure is a fetch that could not be compared. It is reported separately from "no change".
type Failure struct {
	Platform types.Vendor `json:"platform"`
	URL      string       `json:"url"`
	Error    string       `json:"error"`
}

// Result is the outcome of comparing two states
type Result struct {
	Events    []Event
	Failures  []Failure
	Baselines []Target
	Unchanged int
}

// Changed reports whether any documentation changed
func (r Result) Changed() bool {
	return len(r.Events) > 0
}
