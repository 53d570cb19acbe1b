package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.BeginCheck(ctx, "app")
	if err != nil {
		t.Fatalf("BeginCheck: %v", err)
	}
	if err := s.FinishCheck(ctx, id, true, ""); err != nil {
		t.Fatalf("FinishCheck: %v", err)
	}

	id2, err := s.BeginCheck(ctx, "models")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.FinishCheck(ctx, id2, false, "network unreachable"); err != nil {
		t.Fatal(err)
	}

	recs, err := s.RecentChecks(ctx, 10)
	if err != nil {
		t.Fatalf("RecentChecks: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Newest first.
	if recs[0].Kind != "models" || recs[0].Error != "network unreachable" || recs[0].HasUpdate {
		t.Errorf("recs[0] = %+v", recs[0])
	}
	if recs[1].Kind != "app" || !recs[1].HasUpdate || recs[1].CompletedAt.IsZero() {
		t.Errorf("recs[1] = %+v", recs[1])
	}
}

func TestBackupRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := s.RecordBackup("whisper_medium", "/backups/whisper/a", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordBackup("whisper_medium", "/backups/whisper/b", now); err != nil {
		t.Fatal(err)
	}

	rows, err := s.BackupsFor(ctx, "whisper_medium")
	if err != nil {
		t.Fatalf("BackupsFor: %v", err)
	}
	if len(rows) != 2 || rows[0].Path != "/backups/whisper/b" {
		t.Errorf("rows = %+v, want newest first", rows)
	}

	if err := s.DeleteBackupRecord("/backups/whisper/a"); err != nil {
		t.Fatal(err)
	}
	rows, err = s.BackupsFor(ctx, "whisper_medium")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows after delete, want 1", len(rows))
	}
}

func TestReleaseCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LastSeenRelease(ctx, "acme/voiceapp")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}

	if err := s.CacheRelease(ctx, "acme/voiceapp", "v1.4.0", "https://example.com/r"); err != nil {
		t.Fatalf("CacheRelease: %v", err)
	}
	rel, err := s.LastSeenRelease(ctx, "acme/voiceapp")
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "v1.4.0" || rel.FetchedAt.IsZero() {
		t.Errorf("rel = %+v", rel)
	}

	// Upsert replaces.
	if err := s.CacheRelease(ctx, "acme/voiceapp", "v1.5.0", ""); err != nil {
		t.Fatal(err)
	}
	rel, err = s.LastSeenRelease(ctx, "acme/voiceapp")
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "v1.5.0" {
		t.Errorf("Tag = %q after upsert, want v1.5.0", rel.Tag)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginCheck(context.Background(), "app"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	recs, err := s2.RecentChecks(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records after reopen, want 1", len(recs))
	}
}
