// Package bootstrap wires the application components from config.
// Both binaries build the same pipeline; the server adds the admin
// HTTP surface and the worker adds the cron coordinator.
package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pivotmedia/newsroom/internal/compile"
	"github.com/pivotmedia/newsroom/internal/config"
	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/extract"
	"github.com/pivotmedia/newsroom/internal/feeds"
	"github.com/pivotmedia/newsroom/internal/imagery"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/mailer"
	"github.com/pivotmedia/newsroom/internal/mautic"
	"github.com/pivotmedia/newsroom/internal/pipeline"
	"github.com/pivotmedia/newsroom/internal/sched"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// App bundles the wired components.
type App struct {
	Store       *store.Store
	Pipeline    *pipeline.Pipeline
	Coordinator *sched.Coordinator
	Compiler    *compile.Compiler
	LogStore    *execlog.PostgresStore

	redisClient *redis.Client
}

// Close releases held connections.
func (a *App) Close() {
	if a.LogStore != nil {
		_ = a.LogStore.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}

// Build wires the full pipeline from config. Optional collaborators
// that are not configured stay nil; the stages that need them log
// "not configured" and skip.
func Build(cfg *config.Config) (*App, error) {
	client := store.NewClient(cfg.Store.BaseURL, cfg.Store.APIKey, cfg.Store.BaseID)
	st := store.New(client, tableNames(cfg))

	clock, err := story.NewCivilClock(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}

	reader := feeds.NewReaderClient(cfg.Feeds.ReaderBaseURL, cfg.Feeds.ReaderAPIKey)
	var direct *feeds.DirectReader
	if len(cfg.Feeds.DirectFeedURLs) > 0 {
		direct = feeds.NewDirectReader(cfg.Feeds.DirectFeedURLs)
	}
	resolver := feeds.NewResolver(cfg.Feeds.ResolverParallel)

	reasoner, err := llm.NewReasoner(cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.Bedrock.MaxTokens, cfg.Bedrock.Temperature)
	if err != nil {
		return nil, err
	}
	gemini := llm.NewGeminiClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.ChunkSize)

	var extractor *extract.Client
	if cfg.Extract.Enabled {
		extractor = extract.NewClient(cfg.Extract.BaseURL, cfg.Extract.APIKey)
	}

	compiler := compile.NewCompiler(cfg.Newsletter.BrandName, cfg.Newsletter.DeliverableBrand)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var logStore *execlog.PostgresStore
	if cfg.ExecLog.Enabled {
		logStore, err = execlog.NewPostgresStore(cfg.ExecLog.DatabaseURL)
		if err != nil {
			log.Printf("[Bootstrap] execution log not available, continuing without: %v", err)
			logStore = nil
		}
	}

	settings := pipeline.DefaultSettings()
	settings.ArticleLimit = cfg.Feeds.ArticleLimit
	settings.SinceHours = cfg.Feeds.SinceHours
	settings.DedupDays = cfg.Newsletter.DedupDays
	settings.MinSourceScore = cfg.Newsletter.MinSourceScore
	settings.SubjectMaxLen = cfg.Newsletter.SubjectMaxLen
	settings.ExtractSources = cfg.Extract.Sources
	settings.MinBodyLength = cfg.Extract.MinBodyLength
	settings.TargetWidth = cfg.Imagery.TargetWidth

	deps := pipeline.Deps{
		Store:      st,
		Reader:     reader,
		Direct:     direct,
		Resolver:   resolver,
		Classifier: gemini,
		Completer:  reasoner,
		Extractor:  extractor,
		Compiler:   compiler,
		Sender:     buildSender(cfg),
		Queue:      pipeline.NewSendQueue(redisClient, cfg.Redis.Queue),
		Clock:      clock,
		Companies:  story.NewCompanyFilter(cfg.Newsletter.Tier1Companies),
		Settings:   settings,
	}

	if cfg.Gemini.Enabled || cfg.OpenAI.Enabled {
		strategy := &imagery.Strategy{}
		if cfg.Gemini.Enabled {
			strategy.Primary = imagery.NewGeminiGenerator(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.ImageModel)
		}
		if cfg.OpenAI.Enabled {
			strategy.Fallback = imagery.NewOpenAIGenerator(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.ImageModel)
		}
		deps.Images = strategy
	}
	if cfg.Imagery.CloudflareAccountID != "" {
		deps.Host = imagery.NewCloudflareHost(cfg.Imagery.CloudflareAccountID, cfg.Imagery.CloudflareAPIToken)
	}
	if cfg.Imagery.CloudinaryCloudName != "" {
		deps.Optimizer = imagery.NewCloudinaryOptimizer(cfg.Imagery.CloudinaryCloudName, cfg.Imagery.CloudinaryPreset, cfg.Imagery.TargetWidth)
	}
	if logStore != nil {
		deps.LogStore = logStore
	}

	pipe := pipeline.New(deps)
	coord := sched.New(pipe, clock, cfg.Scheduler.CycleTimes, cfg.Scheduler.PublicationTimes, cfg.Scheduler.StageTimeout(), cfg.Scheduler.SendCheckInterval())

	return &App{
		Store:       st,
		Pipeline:    pipe,
		Coordinator: coord,
		Compiler:    compiler,
		LogStore:    logStore,
		redisClient: redisClient,
	}, nil
}

// buildSender prefers the Mautic gateway and falls back to SES when no
// gateway credentials are configured.
func buildSender(cfg *config.Config) mailer.Sender {
	if cfg.Mautic.BaseURL != "" && cfg.Mautic.Username != "" {
		client := mautic.NewClient(mautic.Config{
			BaseURL:  cfg.Mautic.BaseURL,
			Username: cfg.Mautic.Username,
			Password: cfg.Mautic.Password,
		})
		return mailer.NewGatewaySender(client, mailer.GatewayConfig{
			SegmentID:   cfg.Mautic.SegmentID,
			TransportID: cfg.Mautic.TransportID,
			FromAddress: cfg.Mautic.FromAddress,
			FromName:    cfg.Mautic.FromName,
			ReplyTo:     cfg.Mautic.ReplyTo,
		})
	}
	if cfg.SES.FromAddress != "" && len(cfg.SES.Recipients) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sender, err := mailer.NewSESSender(ctx, cfg.SES.Region, cfg.SES.FromAddress, cfg.SES.FromName, cfg.SES.Recipients)
		if err != nil {
			log.Printf("[Bootstrap] SES sender not available: %v", err)
			return nil
		}
		return sender
	}
	log.Printf("[Bootstrap] no email gateway configured, send stage will skip")
	return nil
}

func tableNames(cfg *config.Config) store.TableNames {
	names := store.DefaultTableNames()
	for key, val := range cfg.Store.Tables {
		switch key {
		case "articles":
			names.Articles = val
		case "selects":
			names.Selects = val
		case "prefilter":
			names.Prefilter = val
		case "issues":
			names.Issues = val
		case "signal_issues":
			names.SignalIssues = val
		case "issue_stories":
			names.IssueStories = val
		case "signal_stories":
			names.SignalStories = val
		case "issues_final":
			names.IssuesFinal = val
		case "archive":
			names.Archive = val
		}
	}
	return names
}
