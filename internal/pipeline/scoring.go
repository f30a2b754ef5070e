package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/store"
)

// scoringBodyBudget caps the article text sent to the scoring model.
const scoringBodyBudget = 6000

// Score grades every Article flagged needs_scoring and projects the
// ones above threshold into Selects. Per-article failures are logged
// and skipped; the stage fails only when nothing could be processed.
func (p *Pipeline) Score(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = p.settings.ArticleLimit
	}
	rec := p.recorder("scoring", "scoring", 0)

	articles, err := p.store.ArticlesNeedingScoring(ctx, limit)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, fmt.Errorf("loading articles for scoring: %w", err)
	}
	if len(articles) == 0 {
		rec.Info("no articles need scoring", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}

	var selects []store.Select
	var failed int
	for _, a := range articles {
		score, err := p.scoreArticle(ctx, a)
		if err != nil {
			failed++
			rec.Warn("scoring failed", map[string]interface{}{"url": a.URL, "error": err.Error()})
			continue
		}

		fit := store.FitRejected
		if score.InterestScore >= p.settings.ScoreThreshold {
			fit = store.FitScored
			selects = append(selects, store.Select{
				StoryID:       a.RowID,
				Fingerprint:   a.Fingerprint,
				Headline:      a.Title,
				URL:           a.URL,
				SourceName:    a.SourceName,
				SourceScore:   sourceScoreFor(a.SourceName),
				RawBody:       a.RawBody,
				InterestScore: score.InterestScore,
				Topic:         score.Topic,
				Sentiment:     score.Sentiment,
				PublishedAt:   a.PublishedAt,
				AIProcessedAt: time.Now().UTC(),
			})
		}
		if err := p.store.MarkArticleScored(ctx, a.RowID, fit); err != nil {
			rec.Warn("marking article scored failed", map[string]interface{}{"row": a.RowID, "error": err.Error()})
		}
	}

	if len(selects) > 0 {
		if _, err := p.store.InsertSelects(ctx, selects); err != nil {
			rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
			return 0, fmt.Errorf("inserting selects: %w", err)
		}
	}

	rec.SetSummary("scored", len(articles)-failed)
	rec.SetSummary("selected", len(selects))
	rec.SetSummary("failed", failed)
	status := execlog.StatusSuccess
	if failed > 0 && failed == len(articles) {
		rec.Complete(ctx, execlog.StatusFailed, "every scoring call failed", "")
		return 0, fmt.Errorf("scoring: all %d articles failed", failed)
	}
	if failed > 0 {
		status = execlog.StatusPartial
	}
	rec.Complete(ctx, status, "", "")
	return len(selects), nil
}

func (p *Pipeline) scoreArticle(ctx context.Context, a store.Article) (*llm.Score, error) {
	body := a.RawBody
	if len(body) > scoringBodyBudget {
		body = body[:scoringBodyBudget]
	}
	if body == "" {
		body = a.Title
	}
	raw, err := p.completer.Complete(ctx, llm.ScoringSystemPrompt, llm.ScoringUserPrompt(a.Title, a.SourceName, body))
	if err != nil {
		return nil, err
	}
	var score llm.Score
	if err := llm.ParseJSON(raw, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// knownSourceScores are editorial credibility grades. Sources not
// listed default to 3.
var knownSourceScores = map[string]int{
	"Reuters":               5,
	"Bloomberg":             5,
	"WSJ":                   5,
	"The New York Times":    5,
	"Financial Times":       5,
	"The Information":       4,
	"TechCrunch":            4,
	"The Verge":             4,
	"Axios":                 4,
	"CNBC":                  4,
	"Wired":                 4,
	"Ars Technica":          4,
	"MIT Technology Review": 4,
	"VentureBeat":           3,
	"Business Insider":      3,
	"Forbes":                2,
	"Google News":           2,
}

// sourceScoreFor grades a source name, defaulting unknowns to 3.
func sourceScoreFor(name string) int {
	if score, ok := knownSourceScores[name]; ok {
		return score
	}
	return 3
}
