package pipeline

import (
	"context"
	"fmt"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/imagery"
	"github.com/pivotmedia/newsroom/internal/story"
)

// GenerateImages sweeps IssueStories awaiting imagery: generate,
// optimize, host, and patch the row. Exhausted stories are marked
// failed so the compile stage can proceed without them.
func (p *Pipeline) GenerateImages(ctx context.Context, v story.Variant) (int, error) {
	rec := p.recorder("imagegen-"+string(v), "imagegen", 0)

	if p.images == nil || p.host == nil {
		rec.Info("image generation not configured", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}

	stories, err := p.store.StoriesNeedingImages(ctx, v)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, fmt.Errorf("loading stories needing images: %w", err)
	}

	var generated, failed int
	for _, st := range stories {
		if st.ImageURL != "" {
			continue
		}
		prompt := st.ImagePrompt
		if prompt == "" {
			prompt = imagery.FallbackPrompt(st.Headline)
		}

		data, source, err := p.images.Generate(ctx, prompt)
		if err != nil {
			failed++
			rec.Error("generation exhausted", map[string]interface{}{"story": st.StoryID, "error": err.Error()})
			if err := p.store.MarkImageFailed(ctx, v, st.RowID, err.Error()); err != nil {
				rec.Warn("marking image failed errored", map[string]interface{}{"story": st.StoryID, "error": err.Error()})
			}
			continue
		}

		optimized := imagery.OptimizeWithFallback(ctx, p.optimizer, data, p.settings.TargetWidth)

		url, err := p.host.Upload(ctx, st.StoryID, source, optimized)
		if err != nil {
			failed++
			rec.Error("host upload failed", map[string]interface{}{"story": st.StoryID, "error": err.Error()})
			if err := p.store.MarkImageFailed(ctx, v, st.RowID, err.Error()); err != nil {
				rec.Warn("marking image failed errored", map[string]interface{}{"story": st.StoryID, "error": err.Error()})
			}
			continue
		}

		if err := p.store.MarkImageGenerated(ctx, v, st.RowID, url, source); err != nil {
			failed++
			rec.Error("patching story failed", map[string]interface{}{"story": st.StoryID, "error": err.Error()})
			continue
		}
		generated++
	}

	rec.SetSummary("generated", generated)
	rec.SetSummary("failed", failed)
	status := execlog.StatusSuccess
	if failed > 0 && generated == 0 && len(stories) > 0 {
		status = execlog.StatusFailed
	} else if failed > 0 {
		status = execlog.StatusPartial
	}
	rec.Complete(ctx, status, "", "")
	return generated, nil
}
