package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/mailer"
	"github.com/pivotmedia/newsroom/internal/store"
)

// Send delivers every working-set issue in next-send status. Success
// archives the outcome and deletes the working row; failure leaves the
// row in failed status with a full archive record.
func (p *Pipeline) Send(ctx context.Context) (int, error) {
	rec := p.recorder("send", "send", 0)

	if p.sender == nil {
		rec.Info("no sender configured", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}

	finals, err := p.store.NextSendIssues(ctx)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, fmt.Errorf("loading next-send issues: %w", err)
	}
	if len(finals) == 0 {
		rec.Info("nothing to send", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}

	var sent, failed int
	for _, fin := range finals {
		if err := p.sendOne(ctx, fin); err != nil {
			failed++
			rec.Error("send failed", map[string]interface{}{"issue_id": fin.IssueID, "error": err.Error()})
			continue
		}
		sent++
		rec.Info("issue sent", map[string]interface{}{"issue_id": fin.IssueID})
	}

	rec.SetSummary("sent", sent)
	rec.SetSummary("failed", failed)
	switch {
	case sent == 0 && failed > 0:
		rec.Complete(ctx, execlog.StatusFailed, "every send failed", "")
		return 0, fmt.Errorf("send: all %d issues failed", failed)
	case failed > 0:
		rec.Complete(ctx, execlog.StatusPartial, "", "")
	default:
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
	}
	return sent, nil
}

func (p *Pipeline) sendOne(ctx context.Context, fin store.FinalIssue) error {
	outcome, err := p.sender.Send(ctx, mailer.Request{
		Name:    fin.IssueID,
		Subject: fin.SubjectLine,
		HTML:    fin.CompiledHTML,
	})
	now := time.Now().UTC().Format(time.RFC3339)

	if err != nil {
		if uerr := p.store.UpdateFinal(ctx, fin.RowID, map[string]interface{}{
			"status": store.StatusFailed,
		}); uerr != nil {
			return fmt.Errorf("send failed (%v) and status patch failed: %w", err, uerr)
		}
		if _, aerr := p.store.UpsertArchive(ctx, map[string]interface{}{
			"issue_id":     fin.IssueID,
			"variant":      fin.Variant,
			"status":       store.StatusFailed,
			"subject":      fin.SubjectLine,
			"error":        err.Error(),
			"attempted_at": now,
		}); aerr != nil {
			return fmt.Errorf("send failed (%v) and archive failed: %w", err, aerr)
		}
		return err
	}

	archive := map[string]interface{}{
		"issue_id":   fin.IssueID,
		"variant":    fin.Variant,
		"status":     store.StatusSent,
		"subject":    fin.SubjectLine,
		"sent_at":    now,
		"sent_count": outcome.SentCount,
		"transport":  outcome.Transport,
	}
	if outcome.GatewayEmailID != 0 {
		archive["gateway_email_id"] = outcome.GatewayEmailID
	}
	if outcome.Stats != nil {
		archive["read_count"] = outcome.Stats.ReadCount
		archive["click_count"] = outcome.Stats.ClickCount
		archive["bounce_count"] = outcome.Stats.BounceCount
		archive["unsubscribe_count"] = outcome.Stats.UnsubscribeCount
	}
	if _, err := p.store.UpsertArchive(ctx, archive); err != nil {
		return fmt.Errorf("archiving %s: %w", fin.IssueID, err)
	}
	if err := p.store.DeleteFinal(ctx, fin.RowID); err != nil {
		return fmt.Errorf("removing working row for %s: %w", fin.IssueID, err)
	}
	return nil
}

// ScheduledSendSweep promotes due scheduled issues to next-send and
// nudges the send worker. Runs every few minutes from the scheduler.
func (p *Pipeline) ScheduledSendSweep(ctx context.Context) (int, error) {
	finals, err := p.store.ScheduledIssues(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading scheduled issues: %w", err)
	}

	now := time.Now()
	var promoted int
	for _, fin := range finals {
		if fin.ScheduledSendTime.IsZero() || fin.ScheduledSendTime.After(now) {
			continue
		}
		if err := p.store.UpdateFinal(ctx, fin.RowID, map[string]interface{}{
			"status": store.StatusNextSend,
		}); err != nil {
			return promoted, fmt.Errorf("promoting %s: %w", fin.IssueID, err)
		}
		p.queue.Nudge(ctx, fin.IssueID)
		promoted++
	}
	return promoted, nil
}

// DrainSendNudges consumes pending immediate-send nudges, including
// ones pushed by other processes. The caller runs Send when any were
// waiting.
func (p *Pipeline) DrainSendNudges(ctx context.Context) int {
	return p.queue.Drain(ctx)
}
