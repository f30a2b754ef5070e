// Package sched runs the production cycles: three daily full-pipeline
// runs on the civil clock plus a short-interval scheduled-send sweep.
package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pivotmedia/newsroom/internal/pipeline"
	"github.com/pivotmedia/newsroom/internal/story"
)

// DefaultCycleTimes are the three daily runs, civil time.
var DefaultCycleTimes = []string{"02:00", "09:30", "17:00"}

// DefaultPublicationTimes schedule the editorial tail per variant,
// civil time. Pivot 5 closes just before midnight, Signal at midnight,
// both for the next issue date.
var DefaultPublicationTimes = map[string]string{
	string(story.VariantPivot5): "23:55",
	string(story.VariantSignal): "00:00",
}

const (
	// DefaultStageTimeout bounds each pipeline stage.
	DefaultStageTimeout = 30 * time.Minute

	// DefaultSendCheckInterval is the scheduled-send sweep cadence.
	DefaultSendCheckInterval = 5 * time.Minute

	cyclePollInterval = 30 * time.Second
)

// Coordinator drives the pipeline on the configured cycle times.
type Coordinator struct {
	pipe         *pipeline.Pipeline
	clock        *story.CivilClock
	cycleMinutes map[int]bool            // minute-of-day
	pubMinutes   map[int][]story.Variant // minute-of-day -> variants publishing then
	stageTimeout time.Duration
	sendInterval time.Duration

	lastCycle string                   // "2006-01-02 15:04" of the last fired cycle
	lastPub   map[story.Variant]string // same key per variant

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New builds a Coordinator. cycleTimes entries and pubTimes values are
// "HH:MM" on the civil clock; invalid entries are logged and skipped.
// pubTimes keys are variant names.
func New(pipe *pipeline.Pipeline, clock *story.CivilClock, cycleTimes []string, pubTimes map[string]string, stageTimeout, sendInterval time.Duration) *Coordinator {
	if len(cycleTimes) == 0 {
		cycleTimes = DefaultCycleTimes
	}
	if len(pubTimes) == 0 {
		pubTimes = DefaultPublicationTimes
	}
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	if sendInterval <= 0 {
		sendInterval = DefaultSendCheckInterval
	}
	return &Coordinator{
		pipe:         pipe,
		clock:        clock,
		cycleMinutes: parseCycleTimes(cycleTimes),
		pubMinutes:   parsePublicationTimes(pubTimes),
		stageTimeout: stageTimeout,
		sendInterval: sendInterval,
		lastPub:      map[story.Variant]string{},
	}
}

// parseCycleTimes converts "HH:MM" strings to minute-of-day keys.
func parseCycleTimes(times []string) map[int]bool {
	out := make(map[int]bool, len(times))
	for _, s := range times {
		minute, ok := parseMinuteOfDay(s)
		if !ok {
			log.Printf("[Coordinator] skipping invalid cycle time %q", s)
			continue
		}
		out[minute] = true
	}
	return out
}

// parsePublicationTimes maps variant publication times to minute-of-day
// keys. Unknown variant names and invalid times are skipped.
func parsePublicationTimes(times map[string]string) map[int][]story.Variant {
	out := make(map[int][]story.Variant, len(times))
	for name, s := range times {
		var v story.Variant
		switch name {
		case string(story.VariantPivot5):
			v = story.VariantPivot5
		case string(story.VariantSignal):
			v = story.VariantSignal
		default:
			log.Printf("[Coordinator] skipping publication time for unknown variant %q", name)
			continue
		}
		minute, ok := parseMinuteOfDay(s)
		if !ok {
			log.Printf("[Coordinator] skipping invalid publication time %q for %s", s, name)
			continue
		}
		out[minute] = append(out[minute], v)
	}
	return out
}

func parseMinuteOfDay(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// Start launches the cycle and sweep loops.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	log.Printf("[Coordinator] starting: %d cycle times, send check every %v", len(c.cycleMinutes), c.sendInterval)

	c.wg.Add(1)
	go c.cycleLoop()
	c.wg.Add(1)
	go c.sendCheckLoop()
	return nil
}

// Stop waits for in-flight work to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	log.Printf("[Coordinator] stopping...")
	c.cancel()
	c.wg.Wait()
	log.Printf("[Coordinator] stopped")
}

func (c *Coordinator) cycleLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(cyclePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := c.clock.Now()
			if c.cycleDue(now) {
				if err := c.RunCycle(c.ctx); err != nil {
					log.Printf("[Coordinator] cycle failed: %v", err)
				}
			}
			for _, v := range c.duePublications(now) {
				if err := c.RunPublication(c.ctx, v); err != nil {
					log.Printf("[Coordinator] %s publication failed: %v", v, err)
				}
			}
		}
	}
}

func (c *Coordinator) cycleDue(now time.Time) bool {
	if !c.cycleMinutes[now.Hour()*60+now.Minute()] {
		return false
	}
	key := now.Format("2006-01-02 15:04")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastCycle == key {
		return false
	}
	c.lastCycle = key
	return true
}

// duePublications returns the variants whose publication minute matches
// now and have not fired this minute yet.
func (c *Coordinator) duePublications(now time.Time) []story.Variant {
	minute := now.Hour()*60 + now.Minute()
	variants := c.pubMinutes[minute]
	if len(variants) == 0 || !publicationDay(now, minute) {
		return nil
	}
	key := now.Format("2006-01-02 15:04")
	var due []story.Variant
	c.mu.Lock()
	for _, v := range variants {
		if c.lastPub[v] != key {
			c.lastPub[v] = key
			due = append(due, v)
		}
	}
	c.mu.Unlock()
	return due
}

// publicationDay reports whether a publication may fire on this
// weekday. Evening publications close Monday through Friday; ones just
// after midnight belong to the previous working day and run Tuesday
// through Saturday. No issues are produced over the weekend.
func publicationDay(now time.Time, minute int) bool {
	wd := now.Weekday()
	if minute < 12*60 {
		return wd >= time.Tuesday && wd <= time.Saturday
	}
	return wd >= time.Monday && wd <= time.Friday
}

func (c *Coordinator) sendCheckLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, c.stageTimeout)
			promoted, err := c.pipe.ScheduledSendSweep(ctx)
			if err != nil {
				log.Printf("[Coordinator] scheduled-send sweep failed: %v", err)
			}
			nudged := c.pipe.DrainSendNudges(ctx)
			if promoted+nudged > 0 {
				log.Printf("[Coordinator] %d promoted, %d nudged, sending", promoted, nudged)
				if _, err := c.pipe.Send(ctx); err != nil {
					log.Printf("[Coordinator] immediate send failed: %v", err)
				}
			}
			cancel()
		}
	}
}

// RunCycle executes the full-pipeline DAG once: ingest, direct feeds,
// scoring when anything landed, the non-blocking extractor retry, then
// prefilter. Blocking-stage errors abort the cycle.
func (c *Coordinator) RunCycle(parent context.Context) error {
	log.Printf("[Coordinator] cycle starting")

	ingested, err := c.stage1(parent, "ingest", func(ctx context.Context) (int, error) {
		return c.pipe.Ingest(ctx, pipeline.IngestOptions{})
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	direct, err := c.stage1(parent, "direct-feed", func(ctx context.Context) (int, error) {
		return c.pipe.DirectIngest(ctx, 0)
	})
	if err != nil {
		return fmt.Errorf("direct feeds: %w", err)
	}

	if ingested+direct > 0 {
		if _, err := c.stage1(parent, "scoring", func(ctx context.Context) (int, error) {
			return c.pipe.Score(ctx, 0)
		}); err != nil {
			return fmt.Errorf("scoring: %w", err)
		}
	} else {
		log.Printf("[Coordinator] nothing ingested, skipping scoring")
	}

	// Non-blocking: an extractor failure is logged, never fatal.
	if _, err := c.stage1(parent, "extractor-retry", func(ctx context.Context) (int, error) {
		return c.pipe.ExtractorRetry(ctx, 0)
	}); err != nil {
		log.Printf("[Coordinator] extractor retry failed (non-blocking): %v", err)
	}

	if err := c.stage0(parent, "prefilter", func(ctx context.Context) error {
		return c.pipe.Prefilter(ctx, 0)
	}); err != nil {
		return fmt.Errorf("prefilter: %w", err)
	}

	log.Printf("[Coordinator] cycle done: %d ingested, %d direct", ingested, direct)
	return nil
}

// RunPublication executes the editorial tail for one variant: select,
// decorate, generate imagery, compile, send.
func (c *Coordinator) RunPublication(parent context.Context, v story.Variant) error {
	if err := c.stage0(parent, "select", func(ctx context.Context) error {
		_, err := c.pipe.SelectIssue(ctx, v)
		return err
	}); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if err := c.stage0(parent, "decorate", func(ctx context.Context) error {
		return c.pipe.Decorate(ctx, v)
	}); err != nil {
		return fmt.Errorf("decorate: %w", err)
	}
	if v == story.VariantPivot5 {
		if _, err := c.stage1(parent, "imagegen", func(ctx context.Context) (int, error) {
			return c.pipe.GenerateImages(ctx, v)
		}); err != nil {
			log.Printf("[Coordinator] image generation failed (non-blocking): %v", err)
		}
	}
	if err := c.stage0(parent, "compile", func(ctx context.Context) error {
		return c.pipe.Compile(ctx, v)
	}); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := c.stage0(parent, "send", func(ctx context.Context) error {
		_, err := c.pipe.Send(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (c *Coordinator) stage0(parent context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, c.stageTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	log.Printf("[Coordinator] stage %s finished in %v (err=%v)", name, time.Since(start).Round(time.Millisecond), err)
	return err
}

func (c *Coordinator) stage1(parent context.Context, name string, fn func(context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(parent, c.stageTimeout)
	defer cancel()
	start := time.Now()
	n, err := fn(ctx)
	log.Printf("[Coordinator] stage %s finished in %v (n=%d, err=%v)", name, time.Since(start).Round(time.Millisecond), n, err)
	return n, err
}
