// Package install places verified artifacts at their destinations. Regular
// components are copied or extracted in place; the running executable is
// replaced through a detached helper process because it cannot be
// overwritten while executing.
package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
)

// Executor installs staged artifacts relative to the application directory.
type Executor struct {
	appDir string
}

// NewExecutor creates an installer rooted at appDir. Component destinations
// are resolved against it.
func NewExecutor(appDir string) *Executor {
	return &Executor{appDir: appDir}
}

// Install moves the staged artifact into the component's destination. The
// staged file is left for the caller to clean up.
func (e *Executor) Install(ctx context.Context, comp registry.Component, stagedPath string) error {
	dest := filepath.Join(e.appDir, filepath.FromSlash(comp.Destination))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dest, err)
	}

	switch comp.Kind {
	case registry.KindArchive:
		if err := Extract(ctx, stagedPath, dest); err != nil {
			return fmt.Errorf("extract %s: %w", comp.ID, err)
		}
		for _, name := range comp.Files {
			if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(name))); err != nil {
				return fmt.Errorf("install %s: expected file %s missing after extraction", comp.ID, name)
			}
		}
		return nil

	case registry.KindFile:
		name := comp.FileName
		if name == "" {
			name = filepath.Base(stagedPath)
		}
		if err := placeFile(stagedPath, filepath.Join(dest, name)); err != nil {
			return fmt.Errorf("install %s: %w", comp.ID, err)
		}
		return nil
	}
	return fmt.Errorf("install %s: unknown kind %q", comp.ID, comp.Kind)
}

// placeFile copies src into place through a sibling temp file and an atomic
// rename so the destination never holds a half-written artifact.
func placeFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".install-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
