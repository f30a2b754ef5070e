// Package pipeline implements the daily production stages: ingest,
// scoring, prefilter, selection, decoration, imagery, compile, and
// send. Each stage is independently invocable and records its run to
// the execution log.
package pipeline

import (
	"context"
	"reflect"

	"github.com/pivotmedia/newsroom/internal/compile"
	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/extract"
	"github.com/pivotmedia/newsroom/internal/feeds"
	"github.com/pivotmedia/newsroom/internal/imagery"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/mailer"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// classifier is the fast-model surface: bulk headline classification
// and article-body cleaning.
type classifier interface {
	Classify(ctx context.Context, slot int, headlines []llm.Headline) (map[string]bool, error)
	Clean(ctx context.Context, text string) (string, error)
}

// completer is the reasoning-model surface.
type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// imageGenerator produces image bytes plus a source label.
type imageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, string, error)
}

// imageHost uploads final bytes and returns the delivery URL.
type imageHost interface {
	Upload(ctx context.Context, storyID, source string, data []byte) (string, error)
}

// Settings are the editorial knobs shared across stages.
type Settings struct {
	ArticleLimit   int
	SinceHours     int
	LookbackHours  int
	DedupDays      int
	SlotLimit      int
	MinSourceScore int
	ScoreThreshold float64
	SubjectMaxLen  int
	ExtractSources []string
	MinBodyLength  int
	TargetWidth    int
}

// DefaultSettings mirrors the cron configuration.
func DefaultSettings() Settings {
	return Settings{
		ArticleLimit:   1000,
		SinceHours:     10,
		LookbackHours:  10,
		DedupDays:      14,
		SlotLimit:      200,
		MinSourceScore: 2,
		ScoreThreshold: 6.0,
		SubjectMaxLen:  90,
		MinBodyLength:  500,
		TargetWidth:    imagery.DefaultTargetWidth,
	}
}

// Deps wires a Pipeline. Optional collaborators may be nil; stages that
// need them report "not configured" and skip.
type Deps struct {
	Store      *store.Store
	Reader     *feeds.ReaderClient
	Direct     *feeds.DirectReader
	Resolver   *feeds.Resolver
	Classifier classifier
	Completer  completer
	Extractor  *extract.Client
	Compiler   *compile.Compiler
	Images     imageGenerator
	Optimizer  imagery.Optimizer
	Host       imageHost
	Sender     mailer.Sender
	Queue      *SendQueue
	Clock      *story.CivilClock
	Companies  *story.CompanyFilter
	LogStore   execlog.Store
	Settings   Settings
}

// Pipeline owns the stage implementations.
type Pipeline struct {
	store      *store.Store
	reader     *feeds.ReaderClient
	direct     *feeds.DirectReader
	resolver   *feeds.Resolver
	classifier classifier
	completer  completer
	extractor  *extract.Client
	compiler   *compile.Compiler
	images     imageGenerator
	optimizer  imagery.Optimizer
	host       imageHost
	sender     mailer.Sender
	queue      *SendQueue
	clock      *story.CivilClock
	companies  *story.CompanyFilter
	logStore   execlog.Store
	settings   Settings
}

// New assembles a Pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	if deps.Companies == nil {
		deps.Companies = story.NewCompanyFilter(nil)
	}
	if reflect.DeepEqual(deps.Settings, Settings{}) {
		deps.Settings = DefaultSettings()
	}
	return &Pipeline{
		store:      deps.Store,
		reader:     deps.Reader,
		direct:     deps.Direct,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		completer:  deps.Completer,
		extractor:  deps.Extractor,
		compiler:   deps.Compiler,
		images:     deps.Images,
		optimizer:  deps.Optimizer,
		host:       deps.Host,
		sender:     deps.Sender,
		queue:      deps.Queue,
		clock:      deps.Clock,
		companies:  deps.Companies,
		logStore:   deps.LogStore,
		settings:   deps.Settings,
	}
}

// recorder starts an execution-log run for one stage.
func (p *Pipeline) recorder(stepID, jobType string, slot int) *execlog.Recorder {
	return execlog.NewRecorder(p.logStore, stepID, jobType, slot)
}
