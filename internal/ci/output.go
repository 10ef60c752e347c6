// Package ci writes step outputs for GitHub Actions.
package ci

import (
	"fmt"
	"os"
	"strings"
)

// OutputChangesDetected is the step output downstream jobs branch on
const OutputChangesDetected = "changes_detected"

// WriteOutput appends key=value to the file named by path. An empty path is a no-op.
func WriteOutput(path, key, value string) error {
	if path == "" {
		return nil
	}
	if key == "" || strings.ContainsAny(key, "=\n") || strings.Contains(value, "\n") {
		return fmt.Errorf("invalid output %q", key)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// WriteChangesDetected records the change flag
func WriteChangesDetected(path string, changed bool) error {
	return WriteOutput(path, OutputChangesDetected, fmt.Sprintf("%t", changed))
}
