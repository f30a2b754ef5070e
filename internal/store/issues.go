package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pivotmedia/newsroom/internal/story"
)

// Issue statuses, in lifecycle order. Transitions are monotonic.
const (
	StatusPending   = "pending"
	StatusDecorated = "decorated"
	StatusCompiled  = "compiled"
	StatusNextSend  = "next-send"
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// statusRank orders the lifecycle for the monotonicity guard. scheduled
// is a sibling of next-send: either may follow compiled.
var statusRank = map[string]int{
	StatusPending:   0,
	StatusDecorated: 1,
	StatusCompiled:  2,
	StatusNextSend:  3,
	StatusScheduled: 3,
	StatusSent:      4,
	StatusFailed:    4,
}

// StatusAdvances reports whether moving from to next is a forward
// transition. Equal rank is allowed only for the next-send/scheduled
// pair.
func StatusAdvances(from, to string) bool {
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	if !ok1 || !ok2 {
		return false
	}
	if fr == tr {
		return (from == StatusScheduled && to == StatusNextSend) ||
			(from == StatusNextSend && to == StatusScheduled)
	}
	return tr > fr
}

// SlotRef identifies one selected story inside an Issue.
type SlotRef struct {
	Slot        int
	StoryID     string
	Fingerprint string
	Headline    string
}

// Issue is a planned newsletter for one civil date. Pivot 5 fills
// Slots 1..5; Signal fills Slots for its four long-form sections
// (stored under the same slot numbering) plus five quick-hits.
type Issue struct {
	RowID             string
	IssueID           string
	IssueDate         time.Time
	Status            string
	SubjectLine       string
	CompiledHTML      string
	ScheduledSendTime time.Time
	SentAt            time.Time
	Slots             []SlotRef
	QuickHits         []SlotRef
}

func issueFromRecord(r Record) Issue {
	iss := Issue{
		RowID:             r.ID,
		IssueID:           r.Str("issue_id"),
		IssueDate:         r.Time("issue_date"),
		Status:            r.Str("status"),
		SubjectLine:       r.Str("subject_line"),
		CompiledHTML:      r.Str("compiled_html"),
		ScheduledSendTime: r.Time("scheduled_send_time"),
		SentAt:            r.Time("sent_at"),
	}
	for slot := 1; slot <= 5; slot++ {
		ref := SlotRef{
			Slot:        slot,
			StoryID:     r.Str(fmt.Sprintf("slot_%d_story_id", slot)),
			Fingerprint: r.Str(fmt.Sprintf("slot_%d_fingerprint", slot)),
			Headline:    r.Str(fmt.Sprintf("slot_%d_headline", slot)),
		}
		if ref.StoryID != "" || ref.Fingerprint != "" {
			iss.Slots = append(iss.Slots, ref)
		}
	}
	for i := 1; i <= 5; i++ {
		ref := SlotRef{
			Slot:        i,
			StoryID:     r.Str(fmt.Sprintf("signal_%d_story_id", i)),
			Fingerprint: r.Str(fmt.Sprintf("signal_%d_fingerprint", i)),
			Headline:    r.Str(fmt.Sprintf("signal_%d_headline", i)),
		}
		if ref.StoryID != "" || ref.Fingerprint != "" {
			iss.QuickHits = append(iss.QuickHits, ref)
		}
	}
	return iss
}

// IssueFields builds the field map for a new Issue row.
func IssueFields(issueID string, issueDate time.Time, subjectLine string, slots []SlotRef) map[string]interface{} {
	fields := map[string]interface{}{
		"issue_id":     issueID,
		"issue_date":   issueDate.Format("2006-01-02"),
		"status":       StatusPending,
		"subject_line": subjectLine,
	}
	for _, ref := range slots {
		fields[fmt.Sprintf("slot_%d_story_id", ref.Slot)] = ref.StoryID
		fields[fmt.Sprintf("slot_%d_fingerprint", ref.Slot)] = ref.Fingerprint
		fields[fmt.Sprintf("slot_%d_headline", ref.Slot)] = ref.Headline
	}
	return fields
}

// AddQuickHits appends Signal quick-hit references to an issue field map.
func AddQuickHits(fields map[string]interface{}, hits []SlotRef) {
	for i, ref := range hits {
		n := i + 1
		fields[fmt.Sprintf("signal_%d_story_id", n)] = ref.StoryID
		fields[fmt.Sprintf("signal_%d_fingerprint", n)] = ref.Fingerprint
		fields[fmt.Sprintf("signal_%d_headline", n)] = ref.Headline
	}
}

// CreateIssue writes a new Issue row for the variant.
func (s *Store) CreateIssue(ctx context.Context, v story.Variant, fields map[string]interface{}) (string, error) {
	return s.client.Insert(ctx, s.issuesTable(v), fields)
}

// PendingIssue returns the most recent Issue in pending status, or nil.
func (s *Store) PendingIssue(ctx context.Context, v story.Variant) (*Issue, error) {
	return s.issueByStatus(ctx, v, StatusPending)
}

// DecoratedIssue returns the most recent Issue in decorated status, or nil.
func (s *Store) DecoratedIssue(ctx context.Context, v story.Variant) (*Issue, error) {
	return s.issueByStatus(ctx, v, StatusDecorated)
}

func (s *Store) issueByStatus(ctx context.Context, v story.Variant, status string) (*Issue, error) {
	records, err := s.client.Find(ctx, s.issuesTable(v), Query{
		Filter:     Eq("status", status),
		Sorts:      []SortSpec{{Field: "issue_date", Desc: true}},
		MaxRecords: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	iss := issueFromRecord(records[0])
	return &iss, nil
}

// IssueByID looks up one Issue by its human label.
func (s *Store) IssueByID(ctx context.Context, v story.Variant, issueID string) (*Issue, error) {
	records, err := s.client.Find(ctx, s.issuesTable(v), Query{
		Filter:     Eq("issue_id", issueID),
		MaxRecords: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	iss := issueFromRecord(records[0])
	return &iss, nil
}

// RecentIssues returns the variant's issues from the last daysBack days.
// The selector builds its 14-day deduplication sets from these.
func (s *Store) RecentIssues(ctx context.Context, v story.Variant, daysBack int) ([]Issue, error) {
	records, err := s.client.Find(ctx, s.issuesTable(v), Query{
		Filter: IsAfterNow("issue_date", daysBack*24),
		Sorts:  []SortSpec{{Field: "issue_date", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	issues := make([]Issue, len(records))
	for i, r := range records {
		issues[i] = issueFromRecord(r)
	}
	return issues, nil
}

// UpdateIssue patches an Issue row. Status changes must advance the
// lifecycle; a regression is an invariant violation and is rejected.
func (s *Store) UpdateIssue(ctx context.Context, v story.Variant, iss *Issue, patch map[string]interface{}) error {
	if next, ok := patch["status"].(string); ok && iss.Status != "" && next != iss.Status {
		if !StatusAdvances(iss.Status, next) {
			return fmt.Errorf("issue %s: status cannot move %s -> %s", iss.IssueID, iss.Status, next)
		}
	}
	return s.client.Update(ctx, s.issuesTable(v), iss.RowID, patch)
}

// ========== Final working set and archive ==========

// FinalIssue is a compiled newsletter queued for sending.
type FinalIssue struct {
	RowID             string
	IssueID           string
	Variant           string
	Status            string
	SubjectLine       string
	CompiledHTML      string
	ScheduledSendTime time.Time
}

func finalFromRecord(r Record) FinalIssue {
	return FinalIssue{
		RowID:             r.ID,
		IssueID:           r.Str("issue_id"),
		Variant:           r.Str("variant"),
		Status:            r.Str("status"),
		SubjectLine:       r.Str("subject_line"),
		CompiledHTML:      r.Str("compiled_html"),
		ScheduledSendTime: r.Time("scheduled_send_time"),
	}
}

// PromoteToFinal upserts the compiled Issue into the send working set.
func (s *Store) PromoteToFinal(ctx context.Context, v story.Variant, iss *Issue, html string) (string, error) {
	return s.client.Upsert(ctx, s.tables.IssuesFinal, "issue_id", map[string]interface{}{
		"issue_id":      iss.IssueID,
		"variant":       string(v),
		"status":        StatusNextSend,
		"subject_line":  iss.SubjectLine,
		"compiled_html": html,
	})
}

// NextSendIssues returns the working set rows ready to send.
func (s *Store) NextSendIssues(ctx context.Context) ([]FinalIssue, error) {
	return s.finalByStatus(ctx, StatusNextSend)
}

// ScheduledIssues returns working set rows awaiting their send time.
func (s *Store) ScheduledIssues(ctx context.Context) ([]FinalIssue, error) {
	return s.finalByStatus(ctx, StatusScheduled)
}

func (s *Store) finalByStatus(ctx context.Context, status string) ([]FinalIssue, error) {
	records, err := s.client.Find(ctx, s.tables.IssuesFinal, Query{
		Filter: Eq("status", status),
	})
	if err != nil {
		return nil, err
	}
	finals := make([]FinalIssue, len(records))
	for i, r := range records {
		finals[i] = finalFromRecord(r)
	}
	return finals, nil
}

// UpdateFinal patches a working-set row.
func (s *Store) UpdateFinal(ctx context.Context, rowID string, patch map[string]interface{}) error {
	return s.client.Update(ctx, s.tables.IssuesFinal, rowID, patch)
}

// DeleteFinal removes a working-set row after a successful send.
func (s *Store) DeleteFinal(ctx context.Context, rowID string) error {
	return s.client.Delete(ctx, s.tables.IssuesFinal, rowID)
}

// UpsertArchive records the send outcome, keyed on issue_id so resends
// update in place.
func (s *Store) UpsertArchive(ctx context.Context, fields map[string]interface{}) (string, error) {
	return s.client.Upsert(ctx, s.tables.Archive, "issue_id", fields)
}
