package store

import (
	"context"
	"time"

	"github.com/pivotmedia/newsroom/internal/story"
)

// Image statuses on an IssueStory.
const (
	ImageNeeded    = "needs_image"
	ImagePending   = "pending"
	ImageGenerated = "generated"
	ImageFailed    = "failed"
)

// IssueStory is a decorated story attached to an Issue. Pivot 5 fills
// Dek/Bullets; Signal fills OneLiner/Lead/WhyItMatters/WhatsNext for
// long-form sections and SignalBlurb for quick-hits.
type IssueStory struct {
	RowID        string
	IssueID      string
	StoryID      string
	Fingerprint  string
	SlotOrder    int
	Section      string
	Headline     string
	Dek          string
	Bullets      [3]string
	OneLiner     string
	Lead         string
	WhyItMatters string
	WhatsNext    string
	SignalBlurb  string
	Label        string
	ImagePrompt  string
	ImageURL     string
	ImageStatus  string
	ImageSource  string
	ImageError   string
	RawExcerpt   string
	SourceName   string
}

func issueStoryFromRecord(r Record) IssueStory {
	return IssueStory{
		RowID:        r.ID,
		IssueID:      r.Str("issue_id"),
		StoryID:      r.Str("story_id"),
		Fingerprint:  r.Str("fingerprint"),
		SlotOrder:    r.Int("slot_order"),
		Section:      r.Str("section"),
		Headline:     r.Str("headline"),
		Dek:          r.Str("dek"),
		Bullets:      [3]string{r.Str("b1"), r.Str("b2"), r.Str("b3")},
		OneLiner:     r.Str("one_liner"),
		Lead:         r.Str("lead"),
		WhyItMatters: r.Str("why_it_matters"),
		WhatsNext:    r.Str("whats_next"),
		SignalBlurb:  r.Str("signal_blurb"),
		Label:        r.Str("label"),
		ImagePrompt:  r.Str("image_prompt"),
		ImageURL:     r.Str("image_url"),
		ImageStatus:  r.Str("image_status"),
		ImageSource:  r.Str("image_source"),
		ImageError:   r.Str("image_error"),
		RawExcerpt:   r.Str("raw_excerpt"),
		SourceName:   r.Str("source_name"),
	}
}

func (st IssueStory) fields() map[string]interface{} {
	return map[string]interface{}{
		"issue_id":       st.IssueID,
		"story_id":       st.StoryID,
		"fingerprint":    st.Fingerprint,
		"slot_order":     st.SlotOrder,
		"section":        st.Section,
		"headline":       st.Headline,
		"dek":            st.Dek,
		"b1":             st.Bullets[0],
		"b2":             st.Bullets[1],
		"b3":             st.Bullets[2],
		"one_liner":      st.OneLiner,
		"lead":           st.Lead,
		"why_it_matters": st.WhyItMatters,
		"whats_next":     st.WhatsNext,
		"signal_blurb":   st.SignalBlurb,
		"label":          st.Label,
		"image_prompt":   st.ImagePrompt,
		"image_status":   st.ImageStatus,
		"image_source":   st.ImageSource,
		"raw_excerpt":    st.RawExcerpt,
		"source_name":    st.SourceName,
	}
}

// InsertIssueStory writes one decorated story.
func (s *Store) InsertIssueStory(ctx context.Context, v story.Variant, st IssueStory) (string, error) {
	return s.client.Insert(ctx, s.storiesTable(v), st.fields())
}

// StoriesForIssue returns an issue's decorated stories ordered by slot.
func (s *Store) StoriesForIssue(ctx context.Context, v story.Variant, issueID string) ([]IssueStory, error) {
	records, err := s.client.Find(ctx, s.storiesTable(v), Query{
		Filter: Eq("issue_id", issueID),
		Sorts:  []SortSpec{{Field: "slot_order"}},
	})
	if err != nil {
		return nil, err
	}
	stories := make([]IssueStory, len(records))
	for i, r := range records {
		stories[i] = issueStoryFromRecord(r)
	}
	return stories, nil
}

// StoriesNeedingImages returns stories awaiting image generation.
func (s *Store) StoriesNeedingImages(ctx context.Context, v story.Variant) ([]IssueStory, error) {
	records, err := s.client.Find(ctx, s.storiesTable(v), Query{
		Filter: In("image_status", ImagePending, ImageNeeded),
	})
	if err != nil {
		return nil, err
	}
	stories := make([]IssueStory, len(records))
	for i, r := range records {
		stories[i] = issueStoryFromRecord(r)
	}
	return stories, nil
}

// MarkImageGenerated patches a story after a successful image upload.
func (s *Store) MarkImageGenerated(ctx context.Context, v story.Variant, rowID, imageURL, imageSource string) error {
	return s.client.Update(ctx, s.storiesTable(v), rowID, map[string]interface{}{
		"image_url":            imageURL,
		"image_status":         ImageGenerated,
		"image_source":         imageSource,
		"date_image_generated": time.Now().UTC().Format(time.RFC3339),
	})
}

// MarkImageFailed records image-generation exhaustion.
func (s *Store) MarkImageFailed(ctx context.Context, v story.Variant, rowID, reason string) error {
	return s.client.Update(ctx, s.storiesTable(v), rowID, map[string]interface{}{
		"image_status": ImageFailed,
		"image_error":  reason,
	})
}

// UpdateIssueStory patches arbitrary fields (bolding pass).
func (s *Store) UpdateIssueStory(ctx context.Context, v story.Variant, rowID string, patch map[string]interface{}) error {
	return s.client.Update(ctx, s.storiesTable(v), rowID, patch)
}
