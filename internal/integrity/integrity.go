// Package integrity verifies downloaded artifacts before they are allowed
// anywhere near an install destination.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// MismatchError reports a checksum that did not match the published value.
// The artifact must be discarded; a mismatch is never recoverable by retrying
// the comparison.
type MismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("SHA-256 mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Verify checks path against the expected SHA-256 hex digest, compared
// case-insensitively. When expected is empty no published hash exists and
// verification degrades to requiring a non-empty file.
func Verify(path, expected string) error {
	if strings.TrimSpace(expected) == "" {
		return VerifyNonEmpty(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s for verification: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return &MismatchError{Path: path, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}

// VerifyNonEmpty confirms the file exists and carries at least one byte.
func VerifyNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s for verification: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("verify %s: is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("verify %s: file is empty", path)
	}
	return nil
}

// VerifySize checks the file's on-disk size against a declared size. A want
// of zero or below means the server never declared one and nothing is
// checked.
func VerifySize(path string, want int64) error {
	if want <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s for size check: %w", path, err)
	}
	if info.Size() != want {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", path, want, info.Size())
	}
	return nil
}

// HashFile returns the lower-case SHA-256 hex digest of path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
