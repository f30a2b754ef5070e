package execlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists runs into the execution_logs table.
type PostgresStore struct{ db *sql.DB }

// NewPostgresStore connects to the execution-log database.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening execution log database: %w", err)
	}
	db.SetMaxOpenConns(5)
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection, useful for testing.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts one completed run.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	entries, err := json.Marshal(rec.Entries)
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_logs
			(run_id, step_id, job_type, slot, status, error_message, error_stack,
			 started_at, completed_at, entries, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.RunID, rec.StepID, rec.JobType, rec.Slot, rec.Status,
		rec.ErrorMessage, rec.ErrorStack, rec.StartedAt, rec.CompletedAt,
		entries, summary)
	if err != nil {
		return fmt.Errorf("inserting execution log: %w", err)
	}
	return nil
}

// RunSummary is one row of the recent-runs listing.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	StepID       string          `json:"step_id"`
	JobType      string          `json:"job_type"`
	Slot         int             `json:"slot"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    string          `json:"started_at"`
	CompletedAt  string          `json:"completed_at"`
	Summary      json.RawMessage `json:"summary,omitempty"`
}

// RecentRuns lists the latest runs, newest first. jobType filters when
// non-empty.
func (s *PostgresStore) RecentRuns(ctx context.Context, jobType string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT run_id, step_id, job_type, slot, status,
		       COALESCE(error_message, ''), started_at::text, completed_at::text, summary
		FROM execution_logs`
	args := []interface{}{}
	if jobType != "" {
		q += ` WHERE job_type = $1`
		args = append(args, jobType)
	}
	q += fmt.Sprintf(` ORDER BY started_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing execution logs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StepID, &r.JobType, &r.Slot, &r.Status,
			&r.ErrorMessage, &r.StartedAt, &r.CompletedAt, &r.Summary); err != nil {
			return nil, fmt.Errorf("scanning execution log row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
