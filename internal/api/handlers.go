package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/pipeline"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// Stages is the pipeline surface the handlers trigger.
type Stages interface {
	Ingest(ctx context.Context, opts pipeline.IngestOptions) (int, error)
	DirectIngest(ctx context.Context, sinceHours int) (int, error)
	Score(ctx context.Context, limit int) (int, error)
	Prefilter(ctx context.Context, lookbackHours int) error
	SelectIssue(ctx context.Context, v story.Variant) (string, error)
	Decorate(ctx context.Context, v story.Variant) error
	GenerateImages(ctx context.Context, v story.Variant) (int, error)
	Compile(ctx context.Context, v story.Variant) error
	Send(ctx context.Context) (int, error)
	ExtractorRetry(ctx context.Context, hoursBack int) (int, error)
}

// IssueStore is the store surface for preview and recompile.
type IssueStore interface {
	IssueByID(ctx context.Context, v story.Variant, issueID string) (*store.Issue, error)
	DecoratedIssue(ctx context.Context, v story.Variant) (*store.Issue, error)
	StoriesForIssue(ctx context.Context, v story.Variant, issueID string) ([]store.IssueStory, error)
	UpdateIssue(ctx context.Context, v story.Variant, iss *store.Issue, patch map[string]interface{}) error
}

// Renderer compiles issues to HTML.
type Renderer interface {
	Render(v story.Variant, issue *store.Issue, stories []store.IssueStory) (string, error)
}

// RunLister reads the execution log.
type RunLister interface {
	RecentRuns(ctx context.Context, jobType string, limit int) ([]execlog.RunSummary, error)
}

// Handlers holds the admin endpoints.
type Handlers struct {
	stages   Stages
	issues   IssueStore
	renderer Renderer
	runs     RunLister
	timeout  time.Duration
}

// NewHandlers wires the admin endpoints. runs may be nil when no
// execution-log database is configured.
func NewHandlers(stages Stages, issues IssueStore, renderer Renderer, runs RunLister) *Handlers {
	return &Handlers{
		stages:   stages,
		issues:   issues,
		renderer: renderer,
		runs:     runs,
		timeout:  30 * time.Minute,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runParams is the trigger request body. All fields optional.
type runParams struct {
	Variant       string `json:"variant"`
	LookbackHours int    `json:"lookback_hours"`
	SinceHours    int    `json:"since_hours"`
	Limit         int    `json:"limit"`
}

func (p runParams) variant() story.Variant {
	if p.Variant == string(story.VariantSignal) {
		return story.VariantSignal
	}
	return story.VariantPivot5
}

// RunStage triggers one pipeline stage synchronously.
func (h *Handlers) RunStage(w http.ResponseWriter, r *http.Request) {
	var params runParams
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&params) // empty body is fine
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stage := chi.URLParam(r, "stage")
	var count int
	var detail string
	var err error

	switch stage {
	case "ingest":
		count, err = h.stages.Ingest(ctx, pipeline.IngestOptions{SinceHours: params.SinceHours, Limit: params.Limit})
	case "direct-feed":
		count, err = h.stages.DirectIngest(ctx, params.SinceHours)
	case "scoring":
		count, err = h.stages.Score(ctx, params.Limit)
	case "prefilter":
		err = h.stages.Prefilter(ctx, params.LookbackHours)
	case "select":
		detail, err = h.stages.SelectIssue(ctx, params.variant())
	case "decorate":
		err = h.stages.Decorate(ctx, params.variant())
	case "imagegen":
		count, err = h.stages.GenerateImages(ctx, params.variant())
	case "compile":
		err = h.stages.Compile(ctx, params.variant())
	case "send":
		count, err = h.stages.Send(ctx)
	case "extractor-retry":
		count, err = h.stages.ExtractorRetry(ctx, params.LookbackHours)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown stage %q", stage))
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{"stage": stage, "count": count}
	if detail != "" {
		resp["issue_id"] = detail
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview returns an issue's HTML. ?issue_id= selects a specific issue;
// without it the latest decorated issue is rendered fresh.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	v := variantParam(r)
	issueID := r.URL.Query().Get("issue_id")

	var issue *store.Issue
	var err error
	if issueID != "" {
		issue, err = h.issues.IssueByID(r.Context(), v, issueID)
	} else {
		issue, err = h.issues.DecoratedIssue(r.Context(), v)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "no issue found")
		return
	}

	html := issue.CompiledHTML
	if html == "" {
		stories, err := h.issues.StoriesForIssue(r.Context(), v, issue.IssueID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		html, err = h.renderer.Render(v, issue, stories)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// Recompile re-renders an issue from its stored stories and patches the
// compiled HTML in place. The issue's status does not change.
func (h *Handlers) Recompile(w http.ResponseWriter, r *http.Request) {
	v := variantParam(r)
	issueID := r.URL.Query().Get("issue_id")
	if issueID == "" {
		writeError(w, http.StatusBadRequest, "issue_id is required")
		return
	}

	issue, err := h.issues.IssueByID(r.Context(), v, issueID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "no issue found")
		return
	}

	stories, err := h.issues.StoriesForIssue(r.Context(), v, issue.IssueID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	html, err := h.renderer.Render(v, issue, stories)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.issues.UpdateIssue(r.Context(), v, issue, map[string]interface{}{
		"compiled_html": html,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issue_id":   issue.IssueID,
		"html_bytes": len(html),
	})
}

// Logs lists recent execution-log runs.
func (h *Handlers) Logs(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "execution log not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runs.RecentRuns(r.Context(), r.URL.Query().Get("job_type"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func variantParam(r *http.Request) story.Variant {
	if chi.URLParam(r, "variant") == string(story.VariantSignal) {
		return story.VariantSignal
	}
	return story.VariantPivot5
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
