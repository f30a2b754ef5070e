package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pivotmedia/newsroom/internal/bootstrap"
	"github.com/pivotmedia/newsroom/internal/config"
	"github.com/pivotmedia/newsroom/internal/pipeline"
	"github.com/pivotmedia/newsroom/internal/sched"
	"github.com/pivotmedia/newsroom/internal/story"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	stage := flag.String("stage", "", "run one stage and exit (ingest, direct-feed, scoring, prefilter, select, decorate, imagegen, compile, send, extractor-retry, cycle, publication)")
	variantFlag := flag.String("variant", "pivot5", "newsletter variant (pivot5 or signal)")
	lookback := flag.Int("lookback", 0, "lookback hours override (backfills)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("wiring pipeline: %v", err)
	}
	defer app.Close()

	variant := story.VariantPivot5
	if *variantFlag == string(story.VariantSignal) {
		variant = story.VariantSignal
	}

	if *stage != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.StageTimeout())
		defer cancel()
		if err := runStage(ctx, app.Pipeline, app.Coordinator, *stage, variant, *lookback); err != nil {
			log.Fatalf("stage %s failed: %v", *stage, err)
		}
		log.Printf("stage %s completed", *stage)
		return
	}

	if err := app.Coordinator.Start(); err != nil {
		log.Fatalf("starting coordinator: %v", err)
	}
	log.Printf("worker running, ctrl-c to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Coordinator.Stop()
}

func runStage(ctx context.Context, pipe *pipeline.Pipeline, coord *sched.Coordinator, stage string, v story.Variant, lookback int) error {
	switch stage {
	case "ingest":
		_, err := pipe.Ingest(ctx, pipeline.IngestOptions{SinceHours: lookback})
		return err
	case "direct-feed":
		_, err := pipe.DirectIngest(ctx, lookback)
		return err
	case "scoring":
		_, err := pipe.Score(ctx, 0)
		return err
	case "prefilter":
		return pipe.Prefilter(ctx, lookback)
	case "select":
		_, err := pipe.SelectIssue(ctx, v)
		return err
	case "decorate":
		return pipe.Decorate(ctx, v)
	case "imagegen":
		_, err := pipe.GenerateImages(ctx, v)
		return err
	case "compile":
		return pipe.Compile(ctx, v)
	case "send":
		_, err := pipe.Send(ctx)
		return err
	case "extractor-retry":
		_, err := pipe.ExtractorRetry(ctx, lookback)
		return err
	case "cycle":
		return coord.RunCycle(ctx)
	case "publication":
		return coord.RunPublication(ctx, v)
	default:
		log.Fatalf("unknown stage %q", stage)
		return nil
	}
}
