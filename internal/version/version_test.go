package version

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatVersion(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.3.0", "v1.3.0"},
		{"v1.3.0", "v1.3.0"},
		{"dev", "dev"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FormatVersion(tc.in); got != tc.want {
			t.Errorf("FormatVersion(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCurrentPrefersMarkerFile(t *testing.T) {
	defer ForTesting("9.9.9")()

	path := filepath.Join(t.TempDir(), "version.json")
	if got := Current(path); got != "9.9.9" {
		t.Errorf("Current without marker = %q, want build version", got)
	}

	if err := WriteMarker(path, "1.4.0"); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}
	if got := Current(path); got != "1.4.0" {
		t.Errorf("Current with marker = %q, want 1.4.0", got)
	}
}

func TestCurrentIgnoresMalformedMarker(t *testing.T) {
	defer ForTesting("2.0.0")()

	path := filepath.Join(t.TempDir(), "version.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Current(path); got != "2.0.0" {
		t.Errorf("Current with malformed marker = %q, want build version", got)
	}
}

func TestWriteMarkerAtomicOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version.json")

	if err := WriteMarker(path, "1.0.0"); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}
	if err := WriteMarker(path, "1.1.0"); err != nil {
		t.Fatalf("WriteMarker overwrite: %v", err)
	}
	if got := Current(path); got != "1.1.0" {
		t.Errorf("Current = %q, want 1.1.0", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "version.json" {
			t.Errorf("stray file after marker write: %s", e.Name())
		}
	}
}
