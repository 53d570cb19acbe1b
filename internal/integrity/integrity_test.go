package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestVerifyCorrectHash(t *testing.T) {
	content := []byte("model payload")
	path := writeTempFile(t, content)

	h := sha256.Sum256(content)
	if err := Verify(path, hex.EncodeToString(h[:])); err != nil {
		t.Fatalf("Verify with correct hash: %v", err)
	}
}

func TestVerifyHashCaseInsensitive(t *testing.T) {
	content := []byte("case test")
	path := writeTempFile(t, content)

	h := sha256.Sum256(content)
	upper := strings.ToUpper(hex.EncodeToString(h[:]))
	if err := Verify(path, upper); err != nil {
		t.Fatalf("Verify with upper-case hash: %v", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	path := writeTempFile(t, []byte("some data"))

	err := Verify(path, strings.Repeat("0", 64))
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("error is %T, want *MismatchError", err)
	}
	if mm.Path != path || mm.Actual == "" {
		t.Errorf("mismatch fields not populated: %+v", mm)
	}
}

func TestVerifyEmptyHashRequiresNonEmptyFile(t *testing.T) {
	path := writeTempFile(t, []byte("x"))
	if err := Verify(path, ""); err != nil {
		t.Errorf("Verify non-empty file without hash: %v", err)
	}
	if err := Verify(path, "  "); err != nil {
		t.Errorf("whitespace hash should degrade to existence check: %v", err)
	}

	empty := writeTempFile(t, nil)
	if err := Verify(empty, ""); err == nil {
		t.Error("expected error for empty file without hash")
	}
}

func TestVerifyMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.bin")
	if err := Verify(missing, strings.Repeat("a", 64)); err == nil {
		t.Error("expected error for missing file with hash")
	}
	if err := Verify(missing, ""); err == nil {
		t.Error("expected error for missing file without hash")
	}
}

func TestVerifySize(t *testing.T) {
	path := writeTempFile(t, []byte("12345"))

	if err := VerifySize(path, 5); err != nil {
		t.Errorf("VerifySize exact: %v", err)
	}
	if err := VerifySize(path, 4); err == nil {
		t.Error("expected error for wrong declared size")
	}
	// Undeclared size skips the check.
	if err := VerifySize(path, 0); err != nil {
		t.Errorf("VerifySize 0: %v", err)
	}
	if err := VerifySize(path, -1); err != nil {
		t.Errorf("VerifySize -1: %v", err)
	}
}

func TestHashFile(t *testing.T) {
	content := []byte("hash me")
	path := writeTempFile(t, content)

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	h := sha256.Sum256(content)
	if want := hex.EncodeToString(h[:]); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}
