// Package version carries the build version marker.
package version

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
)

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// FormatVersion returns a display-friendly version string. For normal versions
// it ensures a "v" prefix (e.g. "1.3.0" → "v1.3.0"). Special values like
// "dev" and empty strings are returned as-is.
func FormatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

type marker struct {
	Version string `json:"version"`
}

// Current resolves the running application version. The version marker file
// beside the executable wins when present: after a self-replace the marker
// is the ground truth the relaunched binary confirms itself against. Falls
// back to the compiled-in version.
func Current(markerPath string) string {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return version
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil || strings.TrimSpace(m.Version) == "" {
		return version
	}
	return strings.TrimSpace(m.Version)
}

// WriteMarker records the installed application version for the next launch
// to read.
func WriteMarker(markerPath, v string) error {
	data, err := json.MarshalIndent(marker{Version: v}, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(markerPath, append(data, '\n'), 0o644)
}
