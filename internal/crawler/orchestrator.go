package crawler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/riching/stock-scraper/internal/queue"
	"github.com/riching/stock-scraper/internal/sources"
)

// universeStore adds the run-level operations to the worker's record store.
type universeStore interface {
	recordStore
	AllStockCodes() ([]string, error)
	DeleteDate(date string) (int64, error)
	CountForDate(date string) (int64, error)
}

// SourceFactory builds a fresh source chain for one worker. Chains are
// per-worker because some sources own a browser session.
type SourceFactory func() []sources.PriceSource

// RunConfig configures one crawl run.
type RunConfig struct {
	Date       string
	Verify     bool
	Fix        bool
	Clean      bool
	Limit      int
	Workers    int
	Delay      time.Duration
	MaxRetries int
	MaxCalls   int
}

// Result summarizes a finished run.
type Result struct {
	Codes    int
	Duration time.Duration
	Stats    Snapshot
	Coverage int64
}

// Orchestrator seeds the queue with the stock universe and runs the worker
// pool to completion.
type Orchestrator struct {
	store      universeStore
	newSources SourceFactory
	cfg        RunConfig
}

func NewOrchestrator(store universeStore, factory SourceFactory, cfg RunConfig) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Orchestrator{store: store, newSources: factory, cfg: cfg}
}

// Run executes the crawl: load the universe, optionally purge the target
// date, seed the queue, drain it with the pool and report.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	codes, err := o.store.AllStockCodes()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("entity universe is empty")
	}
	if o.cfg.Limit > 0 && len(codes) > o.cfg.Limit {
		codes = codes[:o.cfg.Limit]
	}

	if o.cfg.Clean && !o.cfg.Verify {
		purged, err := o.store.DeleteDate(o.cfg.Date)
		if err != nil {
			return nil, fmt.Errorf("clean date %s: %w", o.cfg.Date, err)
		}
		log.Printf("[orchestrator] purged %d records for %s", purged, o.cfg.Date)
	}

	start := time.Now()
	stats := NewStats()
	retries := newRetryTracker()

	// Retries can briefly exceed the seed count, hence the extra headroom.
	q := queue.New(len(codes)*2 + o.cfg.Workers)

	workerCfg := WorkerConfig{
		Date:       o.cfg.Date,
		Verify:     o.cfg.Verify,
		Fix:        o.cfg.Fix,
		Delay:      o.cfg.Delay,
		MaxRetries: o.cfg.MaxRetries,
		MaxCalls:   o.cfg.MaxCalls,
	}

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		w := NewWorker(i, q, o.newSources(), o.store, stats, retries, workerCfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	log.Printf("[orchestrator] crawling %d stocks for %s with %d workers (verify=%v)",
		len(codes), o.cfg.Date, o.cfg.Workers, o.cfg.Verify)
	for _, code := range codes {
		q.Push(code)
	}

	q.Join()
	for i := 0; i < o.cfg.Workers; i++ {
		q.PushStop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Printf("[orchestrator] workers did not exit in time, continuing shutdown")
	}

	result := &Result{
		Codes:    len(codes),
		Duration: time.Since(start),
		Stats:    stats.Snapshot(),
	}
	if coverage, err := o.store.CountForDate(o.cfg.Date); err == nil {
		result.Coverage = coverage
	}

	log.Printf("[orchestrator] run finished in %s: %s (coverage %d/%d)",
		result.Duration.Round(time.Second), result.Stats, result.Coverage, result.Codes)
	return result, nil
}

// ForwardProgress reports whether the run achieved anything useful: new
// rows saved, rows confirmed as duplicates, or verify results produced.
func (r *Result) ForwardProgress() bool {
	s := r.Stats
	return s.Saved > 0 || s.Skipped > 0 || s.Matched > 0 || s.Mismatched > 0
}
