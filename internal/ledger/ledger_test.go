package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "versions.json"))
	if v := l.InstalledVersion("whisper_medium"); v != "" {
		t.Errorf("InstalledVersion on empty ledger = %q, want empty", v)
	}
}

func TestSetInstalledPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")

	l := Open(path)
	if err := l.SetInstalled("vocos_model", "1.2.0", "abc123"); err != nil {
		t.Fatalf("SetInstalled: %v", err)
	}

	reopened := Open(path)
	if v := reopened.InstalledVersion("vocos_model"); v != "1.2.0" {
		t.Errorf("InstalledVersion after reopen = %q, want 1.2.0", v)
	}
	e, ok := reopened.Get("vocos_model")
	if !ok || e.Hash != "abc123" || e.InstalledAt == "" {
		t.Errorf("entry = %+v, want hash and timestamp recorded", e)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	l := Open(path)
	if err := l.SetInstalled("m1", "1.0.0", ""); err != nil {
		t.Fatalf("SetInstalled: %v", err)
	}
	if err := l.Remove("m1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if v := Open(path).InstalledVersion("m1"); v != "" {
		t.Errorf("InstalledVersion after remove = %q, want empty", v)
	}
	// Removing an absent entry is a no-op.
	if err := l.Remove("never"); err != nil {
		t.Errorf("Remove absent: %v", err)
	}
}

func TestOpenMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := Open(path)
	if got := len(l.IDs()); got != 0 {
		t.Errorf("IDs() = %d entries, want 0", got)
	}
}

func TestIDsSorted(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "versions.json"))
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := l.SetInstalled(id, "1.0.0", ""); err != nil {
			t.Fatal(err)
		}
	}
	ids := l.IDs()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}
