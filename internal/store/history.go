package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CheckRecord is one check attempt, app or models.
type CheckRecord struct {
	ID          int64
	Kind        string
	StartedAt   time.Time
	CompletedAt time.Time
	HasUpdate   bool
	Error       string
}

// BeginCheck records the start of a check attempt and returns its row ID.
func (s *Store) BeginCheck(ctx context.Context, kind string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO check_history (kind, started_at) VALUES (?, ?)`,
			kind, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// FinishCheck completes a check attempt started with BeginCheck.
func (s *Store) FinishCheck(ctx context.Context, id int64, hasUpdate bool, checkErr string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE check_history SET completed_at = ?, has_update = ?, error = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339), boolToInt(hasUpdate), checkErr, id)
		return err
	})
}

// RecentChecks returns the newest check attempts, most recent first.
func (s *Store) RecentChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, completed_at, has_update, error
		 FROM check_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var rec CheckRecord
		var started string
		var completed sql.NullString
		var hasUpdate int
		if err := rows.Scan(&rec.ID, &rec.Kind, &started, &completed, &hasUpdate, &rec.Error); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		if completed.Valid {
			rec.CompletedAt, _ = time.Parse(time.RFC3339, completed.String)
		}
		rec.HasUpdate = hasUpdate != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordBackup stores an audit entry for a created snapshot. Implements the
// backup manager's Recorder.
func (s *Store) RecordBackup(componentID, path string, createdAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO backup_records (path, component_id, created_at) VALUES (?, ?, ?)`,
			path, componentID, createdAt.UTC().Format(time.RFC3339))
		return err
	})
}

// DeleteBackupRecord removes the audit entry for a pruned snapshot.
func (s *Store) DeleteBackupRecord(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM backup_records WHERE path = ?`, path)
		return err
	})
}

// BackupRow is one audited backup snapshot.
type BackupRow struct {
	Path        string
	ComponentID string
	CreatedAt   time.Time
}

// BackupsFor lists the audited snapshots for a component, newest first.
func (s *Store) BackupsFor(ctx context.Context, componentID string) ([]BackupRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, component_id, created_at FROM backup_records
		 WHERE component_id = ? ORDER BY created_at DESC`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BackupRow
	for rows.Next() {
		var row BackupRow
		var created string
		if err := rows.Scan(&row.Path, &row.ComponentID, &created); err != nil {
			return nil, err
		}
		row.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CachedRelease is the last release metadata seen for a repository.
type CachedRelease struct {
	Repo      string
	Tag       string
	NotesURL  string
	FetchedAt time.Time
}

// CacheRelease upserts the latest release metadata for repo.
func (s *Store) CacheRelease(ctx context.Context, repo, tag, notesURL string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO release_cache (repo, tag, notes_url, fetched_at) VALUES (?, ?, ?, ?)`,
			repo, tag, notesURL, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// LastSeenRelease returns the cached release metadata for repo.
func (s *Store) LastSeenRelease(ctx context.Context, repo string) (CachedRelease, error) {
	var rel CachedRelease
	var fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT repo, tag, notes_url, fetched_at FROM release_cache WHERE repo = ?`, repo).
		Scan(&rel.Repo, &rel.Tag, &rel.NotesURL, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedRelease{}, NotFoundError{Entity: "release", Key: repo}
	}
	if err != nil {
		return CachedRelease{}, err
	}
	rel.FetchedAt, _ = time.Parse(time.RFC3339, fetched)
	return rel, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
