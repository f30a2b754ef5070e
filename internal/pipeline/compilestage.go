package pipeline

import (
	"context"
	"fmt"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// Compile renders the decorated Issue into both HTML variants, patches
// the Issue to compiled, and promotes it into the send working set.
func (p *Pipeline) Compile(ctx context.Context, v story.Variant) error {
	rec := p.recorder("compile-"+string(v), "compile", 0)

	issue, err := p.store.DecoratedIssue(ctx, v)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("loading decorated issue: %w", err)
	}
	if issue == nil {
		rec.Info("no decorated issue", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return nil
	}

	stories, err := p.store.StoriesForIssue(ctx, v, issue.IssueID)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("loading stories for %s: %w", issue.IssueID, err)
	}
	if len(stories) == 0 {
		rec.Complete(ctx, execlog.StatusFailed, "issue has no stories", "")
		return fmt.Errorf("compile %s: issue has no stories", issue.IssueID)
	}

	html, err := p.compiler.Render(v, issue, stories)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("rendering %s: %w", issue.IssueID, err)
	}
	deliverable, err := p.compiler.Deliverable(html)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("rendering deliverable variant of %s: %w", issue.IssueID, err)
	}

	if err := p.store.UpdateIssue(ctx, v, issue, map[string]interface{}{
		"status":        store.StatusCompiled,
		"compiled_html": html,
	}); err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("patching issue %s: %w", issue.IssueID, err)
	}
	issue.Status = store.StatusCompiled

	rowID, err := p.store.PromoteToFinal(ctx, v, issue, html)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("promoting issue %s: %w", issue.IssueID, err)
	}
	if err := p.store.UpdateFinal(ctx, rowID, map[string]interface{}{
		"deliverable_html": deliverable,
	}); err != nil {
		rec.Warn("storing deliverable variant failed", map[string]interface{}{"error": err.Error()})
	}

	rec.SetSummary("issue_id", issue.IssueID)
	rec.SetSummary("stories", len(stories))
	rec.SetSummary("html_bytes", len(html))
	rec.Complete(ctx, execlog.StatusSuccess, "", "")
	return nil
}
