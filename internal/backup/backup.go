// Package backup snapshots installed artifacts before an install attempt
// touches them. A failed snapshot aborts the install; installing without a
// safety copy is never permitted.
package backup

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Record describes one snapshot on disk.
type Record struct {
	ComponentID string
	Path        string
	CreatedAt   time.Time
}

// Recorder receives audit entries for created and pruned snapshots. It is
// optional; a nil Recorder disables auditing only, never the snapshots.
type Recorder interface {
	RecordBackup(componentID, path string, createdAt time.Time) error
	DeleteBackupRecord(path string) error
}

// Manager owns the backup directory for all components.
type Manager struct {
	dir      string
	enabled  bool
	recorder Recorder
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithDisabled turns snapshots into no-ops, per user policy.
func WithDisabled() ManagerOption {
	return func(m *Manager) { m.enabled = false }
}

// NewManager creates a backup manager rooted at dir.
func NewManager(dir string, opts ...ManagerOption) *Manager {
	m := &Manager{dir: dir, enabled: true, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot copies the current artifact at sourcePath into a timestamped
// location keyed by component. A disabled manager, or a component with
// nothing installed yet, yields a nil Record and nil error.
func (m *Manager) Snapshot(componentID, sourcePath string) (*Record, error) {
	if !m.enabled {
		return nil, nil
	}

	info, err := os.Stat(sourcePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil // nothing to protect
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sourcePath, err)
	}

	createdAt := m.now()
	stamp := createdAt.Format("20060102-150405") + "-" + uuid.NewString()[:8]
	dest := filepath.Join(m.dir, componentID, stamp)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if info.IsDir() {
		err = copyTree(sourcePath, dest)
	} else {
		err = copyFile(sourcePath, dest, info.Mode().Perm())
	}
	if err != nil {
		// Best effort: do not leave a half-written snapshot behind.
		os.RemoveAll(dest)
		return nil, fmt.Errorf("snapshot %s: %w", componentID, err)
	}

	rec := &Record{ComponentID: componentID, Path: dest, CreatedAt: createdAt}
	if m.recorder != nil {
		if rerr := m.recorder.RecordBackup(componentID, dest, createdAt); rerr != nil {
			log.Printf("[Backup] WARNING: record snapshot %s: %v", dest, rerr)
		}
	}
	return rec, nil
}

// List returns the component's snapshots, newest first by creation time.
func (m *Manager) List(componentID string) ([]Record, error) {
	dir := filepath.Join(m.dir, componentID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups for %s: %w", componentID, err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			ComponentID: componentID,
			Path:        filepath.Join(dir, e.Name()),
			CreatedAt:   info.ModTime(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Components returns every component that has at least one snapshot.
func (m *Manager) Components() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Prune removes every snapshot beyond the keep most recent. Deletion
// failures are logged, not fatal.
func (m *Manager) Prune(componentID string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	records, err := m.List(componentID)
	if err != nil {
		return err
	}
	if len(records) <= keep {
		return nil
	}

	for _, rec := range records[keep:] {
		if err := os.RemoveAll(rec.Path); err != nil {
			log.Printf("[Backup] WARNING: prune %s: %v", rec.Path, err)
			continue
		}
		if m.recorder != nil {
			if err := m.recorder.DeleteBackupRecord(rec.Path); err != nil {
				log.Printf("[Backup] WARNING: delete audit record for %s: %v", rec.Path, err)
			}
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies a directory recursively. Symlinks are skipped rather than
// followed so a snapshot can never escape the source tree.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.Type()&os.ModeSymlink != 0 {
			log.Printf("[Backup] WARNING: skipping symlink %s", path)
			return nil
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}
