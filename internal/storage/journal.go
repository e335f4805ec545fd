// Package storage keeps a local SQLite audit trail of orchestrated
// mutations. It records outcomes only; snapshots are never persisted.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values stored in the journal.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
)

// MutationRecord is one journaled mutation attempt.
type MutationRecord struct {
	ID        int64
	RequestID string
	Kind      string
	Operation string
	EntityID  int64
	Outcome   string
	ErrorKind string
	Message   string
	Refreshed []string
	Stale     []string
	CreatedAt time.Time
}

type Journal struct {
	db      *sql.DB
	version uint
}

// SchemaVersion is the migration version the journal was opened at.
func (j *Journal) SchemaVersion() uint {
	return j.version
}

func NewJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Journal{db: db, version: version}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends rec and returns its row id. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, rec MutationRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeApplied
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO mutation_journal
			(request_id, kind, operation, entity_id, outcome, error_kind, message, refreshed, stale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Kind, rec.Operation, rec.EntityID, rec.Outcome,
		rec.ErrorKind, rec.Message, joinList(rec.Refreshed), joinList(rec.Stale),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert mutation record: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]MutationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, request_id, kind, operation, entity_id, outcome, error_kind, message, refreshed, stale, created_at
		FROM mutation_journal
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query mutation records: %w", err)
	}
	defer rows.Close()

	var records []MutationRecord
	for rows.Next() {
		var (
			rec              MutationRecord
			refreshed, stale string
			createdAt        string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Kind, &rec.Operation, &rec.EntityID,
			&rec.Outcome, &rec.ErrorKind, &rec.Message, &refreshed, &stale, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mutation record: %w", err)
		}
		rec.Refreshed = splitList(refreshed)
		rec.Stale = splitList(stale)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByOutcome returns how many records carry the given outcome.
func (j *Journal) CountByOutcome(ctx context.Context, outcome string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutation_journal WHERE outcome = ?`, outcome).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mutation records: %w", err)
	}
	return n, nil
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
