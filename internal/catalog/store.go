// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"docverge/internal/job"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS comparisons (
		job_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		added INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		modified INTEGER NOT NULL DEFAULT 0,
		similarity REAL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comparisons_created ON comparisons(created_at)`,
}

// Record is one terminal job as persisted in the history catalog.
type Record struct {
	JobID       string     `db:"job_id" json:"job_id"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Added       int        `db:"added" json:"added"`
	Removed     int        `db:"removed" json:"removed"`
	Modified    int        `db:"modified" json:"modified"`
	Similarity  *float64   `db:"similarity" json:"similarity,omitempty"`
	RetryCount  int        `db:"retry_count" json:"retry_count"`
	Error       *string    `db:"error" json:"error,omitempty"`
}

// Store keeps a durable summary of every terminal comparison job. The live
// pipeline never reads it; it exists for the history endpoint.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store at the configured path, migrating the schema on
// first use.
func Open(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// RecordJob upserts a terminal job's summary row. Non-terminal jobs are
// rejected: the catalog only holds finished work.
func (s *Store) RecordJob(ctx context.Context, j *job.Job) error {
	if s == nil || s.db == nil {
		return errors.New("catalog not initialised")
	}
	if j == nil || !j.Status.Terminal() {
		return errors.New("only terminal jobs are recorded")
	}
	rec := Record{
		JobID:       j.ID,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		RetryCount:  j.RetryCount,
	}
	if j.Result != nil {
		rec.Added = j.Result.Summary.Added
		rec.Removed = j.Result.Summary.Removed
		rec.Modified = j.Result.Summary.Modified
		similarity := j.Result.Summary.SimilarityPercentage
		rec.Similarity = &similarity
	}
	if j.Error != "" {
		errText := j.Error
		rec.Error = &errText
	}
	const query = `INSERT INTO comparisons
		(job_id, status, created_at, completed_at, added, removed, modified, similarity, retry_count, error)
		VALUES (:job_id, :status, :created_at, :completed_at, :added, :removed, :modified, :similarity, :retry_count, :error)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			added = excluded.added,
			removed = excluded.removed,
			modified = excluded.modified,
			similarity = excluded.similarity,
			retry_count = excluded.retry_count,
			error = excluded.error`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("record job %s: %w", j.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	records := make([]Record, 0, limit)
	const query = `SELECT job_id, status, created_at, completed_at, added, removed, modified, similarity, retry_count, error
		FROM comparisons ORDER BY created_at DESC, job_id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	return records, nil
}
