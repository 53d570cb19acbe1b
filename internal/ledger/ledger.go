// Package ledger records the installed version of every synced component.
// An entry is written only after a component has been downloaded, verified
// and moved into place, so the ledger never claims more than the filesystem
// actually holds.
package ledger

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
)

// Entry is one installed component.
type Entry struct {
	Version     string `json:"version"`
	InstalledAt string `json:"installed_at"`
	Hash        string `json:"hash,omitempty"`
}

// Ledger is the single owner of the version ledger file.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// Open loads the ledger file. A missing file is an empty ledger; a malformed
// file is logged and replaced with an empty one rather than aborting sync.
func Open(path string) *Ledger {
	l := &Ledger{path: path, entries: map[string]Entry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Ledger] WARNING: read %s: %v", path, err)
		}
		return l
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		log.Printf("[Ledger] WARNING: ledger %s malformed, starting empty: %v", path, err)
		l.entries = map[string]Entry{}
	}
	return l
}

// InstalledVersion returns the recorded version for id, or "" if the
// component has never been installed.
func (l *Ledger) InstalledVersion(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[id].Version
}

// Get returns the full entry for id.
func (l *Ledger) Get(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	return e, ok
}

// SetInstalled records a completed install and persists the ledger
// atomically.
func (l *Ledger) SetInstalled(id, version, hash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[id] = Entry{
		Version:     version,
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
		Hash:        hash,
	}
	return l.flushLocked()
}

// Remove drops the entry for id, if present.
func (l *Ledger) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; !ok {
		return nil
	}
	delete(l.entries, id)
	return l.flushLocked()
}

// IDs returns the recorded component IDs in sorted order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Ledger) flushLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(l.path, append(data, '\n'), 0o644)
}
