// Package execlog records per-stage pipeline runs: a buffered entry
// log plus a summary map, persisted as one row per run. Persistence is
// best-effort: a logging failure never fails the job it describes.
package execlog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Entry is one buffered log line inside a run.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Record is the persisted form of a completed run.
type Record struct {
	RunID        string
	StepID       string
	JobType      string
	Slot         int
	Status       string
	ErrorMessage string
	ErrorStack   string
	StartedAt    time.Time
	CompletedAt  time.Time
	Entries      []Entry
	Summary      map[string]interface{}
}

// Store persists completed runs.
type Store interface {
	Save(ctx context.Context, rec Record) error
}

// Recorder buffers one run's entries and summary until Complete.
type Recorder struct {
	mu      sync.Mutex
	store   Store
	runID   string
	stepID  string
	jobType string
	slot    int
	started time.Time
	entries []Entry
	summary map[string]interface{}
}

// NewRecorder starts a run for one pipeline step. store may be nil,
// which degrades to stdout-only logging.
func NewRecorder(store Store, stepID, jobType string, slot int) *Recorder {
	return &Recorder{
		store:   store,
		runID:   uuid.New().String(),
		stepID:  stepID,
		jobType: jobType,
		slot:    slot,
		started: time.Now().UTC(),
		summary: make(map[string]interface{}),
	}
}

// RunID returns the run's unique identifier.
func (r *Recorder) RunID() string {
	return r.runID
}

// Info buffers an info-level entry and mirrors it to stdout.
func (r *Recorder) Info(message string, metadata map[string]interface{}) {
	r.add("info", message, metadata)
}

// Warn buffers a warning entry and mirrors it to stdout.
func (r *Recorder) Warn(message string, metadata map[string]interface{}) {
	r.add("warn", message, metadata)
}

// Error buffers an error entry and mirrors it to stdout.
func (r *Recorder) Error(message string, metadata map[string]interface{}) {
	r.add("error", message, metadata)
}

func (r *Recorder) add(level, message string, metadata map[string]interface{}) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Metadata:  metadata,
	})
	r.mu.Unlock()
	log.Printf("[%s] %s: %s", r.stepID, level, message)
}

// SetSummary records one summary key for the run.
func (r *Recorder) SetSummary(key string, value interface{}) {
	r.mu.Lock()
	r.summary[key] = value
	r.mu.Unlock()
}

// Complete persists the run. Persistence errors are logged and
// swallowed so the job's own outcome stands.
func (r *Recorder) Complete(ctx context.Context, status, errorMessage, errorStack string) {
	r.mu.Lock()
	rec := Record{
		RunID:        r.runID,
		StepID:       r.stepID,
		JobType:      r.jobType,
		Slot:         r.slot,
		Status:       status,
		ErrorMessage: errorMessage,
		ErrorStack:   errorStack,
		StartedAt:    r.started,
		CompletedAt:  time.Now().UTC(),
		Entries:      append([]Entry(nil), r.entries...),
		Summary:      r.summary,
	}
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, rec); err != nil {
		log.Printf("[ExecLog] persisting run %s failed: %v", r.runID, err)
	}
}
