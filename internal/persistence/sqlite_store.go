package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mthorvald/audiogen/internal/integrity"
	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/pkg/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore backs both the job queue and the integrity verifier with a
// single SQLite database. Jobs are stored as JSON snapshots keyed by id;
// integrity records get a proper relational table because the verifier
// queries them by status and age.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc.org/sqlite serializes writes; one connection avoids
	// SQLITE_BUSY under concurrent workers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE name = ?", name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		script, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("loading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(script)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)", name, time.Now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
		log.Info("Applied migration %s", name)
	}
	return nil
}

// LoadJobs implements jobs.Store.
func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.AudioJob, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM jobs")
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var loaded []*jobs.AudioJob
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		var job jobs.AudioJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Error("Skipping undecodable job payload: %v", err)
			continue
		}
		loaded = append(loaded, &job)
	}
	return loaded, rows.Err()
}

// UpsertJob implements jobs.Store.
func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.AudioJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload, updated_at = excluded.updated_at`,
		job.ID, string(job.Status), string(payload), job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

// DeleteJob implements jobs.Store.
func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", jobID); err != nil {
		return fmt.Errorf("deleting job %s: %w", jobID, err)
	}
	return nil
}

// PutRecord implements integrity.RecordStore. Re-storing a (job, language)
// pair resets the record to pending with the new hashes, since the artifacts
// were just rewritten.
func (s *SQLiteStore) PutRecord(ctx context.Context, rec integrity.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integrity_records (job_id, language, srt_path, vtt_path, srt_hash, vtt_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(job_id, language) DO UPDATE SET
			srt_path = excluded.srt_path,
			vtt_path = excluded.vtt_path,
			srt_hash = excluded.srt_hash,
			vtt_hash = excluded.vtt_hash,
			status = 'pending',
			last_checked_at = NULL`,
		rec.JobID, rec.Language, rec.SRTPath, rec.VTTPath, rec.SRTHash, rec.VTTHash, createdAt)
	if err != nil {
		return fmt.Errorf("storing integrity record for job %s language %s: %w", rec.JobID, rec.Language, err)
	}
	return nil
}

// DueRecords implements integrity.RecordStore: pending records plus verified
// records last checked before the cutoff. Failed records never return.
func (s *SQLiteStore) DueRecords(ctx context.Context, recheckBefore time.Time, limit int) ([]integrity.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, language, srt_path, vtt_path, srt_hash, vtt_hash, status, last_checked_at, created_at
		FROM integrity_records
		WHERE status = 'pending' OR (status = 'verified' AND last_checked_at < ?)
		ORDER BY created_at
		LIMIT ?`, recheckBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due records: %w", err)
	}
	defer rows.Close()

	var due []integrity.Record
	for rows.Next() {
		var rec integrity.Record
		var lastChecked sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Language, &rec.SRTPath, &rec.VTTPath, &rec.SRTHash, &rec.VTTHash, &rec.Status, &lastChecked, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		if lastChecked.Valid {
			rec.LastCheckedAt = lastChecked.Time
		}
		due = append(due, rec)
	}
	return due, rows.Err()
}

// MarkRecord implements integrity.RecordStore.
func (s *SQLiteStore) MarkRecord(ctx context.Context, id int64, status integrity.RecordStatus, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE integrity_records SET status = ?, last_checked_at = ? WHERE id = ?",
		string(status), checkedAt, id)
	if err != nil {
		return fmt.Errorf("marking record %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}
