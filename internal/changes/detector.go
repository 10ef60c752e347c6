package changes

import (
	"fmt"
	"sort"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// Detector compares fingerprint states in watchlist declaration order
type Detector struct {
	watchlist []Target
}

// NewDetector creates a detector for an ordered watchlist
func NewDetector(watchlist []Target) *Detector {
	wl := make([]Target, len(watchlist))
	copy(wl, watchlist)
	return &Detector{watchlist: wl}
}

// Detect compares the current run's fingerprints with the previous run's.
//
// A URL with no previous hash is a baseline, not a change. A failed current fetch is a
// Failure, never an Event. Neither state is modified.
func (d *Detector) Detect(current, previous State) Result {
	var result Result

	for _, target := range d.order(current) {
		cur, ok := current.Lookup(target.Vendor, target.URL)
		if !ok {
			continue
		}

		if !cur.OK() {
			result.Failures = append(result.Failures, Failure{
				Platform: target.Vendor,
				URL:      target.URL,
				Error:    cur.Error,
			})
			continue
		}

		prev, _ := previous.Lookup(target.Vendor, target.URL)
		switch {
		case prev.Hash == "":
			result.Baselines = append(result.Baselines, target)
		case prev.Hash != cur.Hash:
			result.Events = append(result.Events, Event{
				Platform:    target.Vendor,
				URL:         target.URL,
				Description: describe(cur.Hash),
			})
		default:
			result.Unchanged++
		}
	}

	return result
}

// order yields watchlist targets first, then anything else present in current sorted by vendor and URL
func (d *Detector) order(current State) []Target {
	seen := make(map[Target]struct{}, len(d.watchlist))
	targets := make([]Target, 0, len(d.watchlist))
	for _, t := range d.watchlist {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	var extra []Target
	for vendor, urls := range current {
		for url := range urls {
			t := Target{Vendor: vendor, URL: url}
			if _, ok := seen[t]; !ok {
				extra = append(extra, t)
			}
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		if extra[i].Vendor != extra[j].Vendor {
			return extra[i].Vendor < extra[j].Vendor
		}
		return extra[i].URL < extra[j].URL
	})

	return append(targets, extra...)
}

func describe(hash string) string {
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Content changed (hash: %s...)", short)
}

// CountByVendor groups event counts per vendor
func CountByVendor(events []Event) map[types.Vendor]int {
	counts := make(map[types.Vendor]int)
	for _, e := range events {
		counts[e.Platform]++
	}
	return counts
}
