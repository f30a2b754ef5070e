package execlog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

type captureStore struct {
	saved []Record
	err   error
}

func (c *captureStore) Save(_ context.Context, rec Record) error {
	c.saved = append(c.saved, rec)
	return c.err
}

func TestRecorderBuffersAndCompletes(t *testing.T) {
	st := &captureStore{}
	rec := NewRecorder(st, "prefilter-slot-1", "prefilter", 1)

	rec.Info("starting slot", map[string]interface{}{"slot": 1})
	rec.Warn("one chunk failed", nil)
	rec.SetSummary("candidates", 42)
	rec.Complete(context.Background(), StatusPartial, "chunk 2 failed", "")

	if len(st.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(st.saved))
	}
	got := st.saved[0]
	if got.RunID == "" {
		t.Error("run ID not set")
	}
	if got.StepID != "prefilter-slot-1" || got.JobType != "prefilter" || got.Slot != 1 {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.Status != StatusPartial || got.ErrorMessage != "chunk 2 failed" {
		t.Errorf("outcome fields wrong: %+v", got)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(got.Entries))
	}
	if got.Entries[0].Level != "info" || got.Entries[1].Level != "warn" {
		t.Errorf("entry levels wrong: %v, %v", got.Entries[0].Level, got.Entries[1].Level)
	}
	if got.Summary["candidates"] != 42 {
		t.Errorf("summary candidates = %v, want 42", got.Summary["candidates"])
	}
	if !got.CompletedAt.After(got.StartedAt) && !got.CompletedAt.Equal(got.StartedAt) {
		t.Error("completed_at before started_at")
	}
}

func TestCompleteSwallowsStoreError(t *testing.T) {
	st := &captureStore{err: errors.New("connection refused")}
	rec := NewRecorder(st, "send", "send", 0)

	// Must not panic or surface the error.
	rec.Complete(context.Background(), StatusSuccess, "", "")
}

func TestCompleteWithNilStore(t *testing.T) {
	rec := NewRecorder(nil, "ingest", "ingest", 0)
	rec.Info("fetched articles", nil)
	rec.Complete(context.Background(), StatusSuccess, "", "")
}

func TestPostgresSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO execution_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	st := NewPostgresStoreFromDB(db)
	rec := NewRecorder(st, "compile", "compile", 0)
	rec.Info("rendered issue", map[string]interface{}{"issue": "Pivot 5 - Jan 05"})
	rec.Complete(context.Background(), StatusSuccess, "", "")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRecentRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"run_id", "step_id", "job_type", "slot", "status",
		"error_message", "started_at", "completed_at", "summary",
	}).AddRow("run-1", "ingest", "ingest", 0, StatusSuccess,
		"", "2026-01-05 09:30:00", "2026-01-05 09:31:00", []byte(`{"inserted":12}`))

	mock.ExpectQuery("SELECT run_id, step_id, job_type").
		WithArgs("ingest").
		WillReturnRows(rows)

	st := NewPostgresStoreFromDB(db)
	got, err := st.RecentRuns(context.Background(), "ingest", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-1" || got[0].Status != StatusSuccess {
		t.Errorf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
