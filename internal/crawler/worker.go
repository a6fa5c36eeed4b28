// Package crawler runs the price crawl: a shared task queue, a pool of
// workers each holding its own source chain, and a comparator for
// reconciliation runs.
package crawler

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/riching/stock-scraper/internal/models"
	"github.com/riching/stock-scraper/internal/queue"
	"github.com/riching/stock-scraper/internal/sources"
	"github.com/riching/stock-scraper/internal/validate"
)

// recordStore is the slice of the database layer the worker touches.
type recordStore interface {
	InsertMarketRecord(rec *models.MarketRecord) (bool, error)
	UpdateMarketRecord(code, date string, fields map[string]interface{}) (bool, error)
	GetMarketRecord(code, date string) (*models.MarketRecord, error)
}

// WorkerConfig carries the per-run knobs shared by all workers.
type WorkerConfig struct {
	Date       string
	Verify     bool
	Fix        bool
	Delay      time.Duration
	MaxRetries int
	MaxCalls   int
	PopTimeout time.Duration
}

// retryTracker counts fetch attempts per stock across the whole pool, so
// a requeued task keeps its history no matter which worker picks it up.
type retryTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

func newRetryTracker() *retryTracker {
	return &retryTracker{attempts: make(map[string]int)}
}

func (r *retryTracker) next(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[code]++
	return r.attempts[code]
}

// Worker drains the task queue. Each worker owns its source chain so
// browser-backed sources are never shared across goroutines.
type Worker struct {
	id      int
	queue   *queue.TaskQueue
	sources []sources.PriceSource
	store   recordStore
	policy  *validate.Policy
	stats   *Stats
	comp    *Comparator
	retries *retryTracker
	cfg     WorkerConfig
}

func NewWorker(id int, q *queue.TaskQueue, srcs []sources.PriceSource, store recordStore, stats *Stats, retries *retryTracker, cfg WorkerConfig) *Worker {
	if cfg.PopTimeout == 0 {
		cfg.PopTimeout = 2 * time.Second
	}
	if retries == nil {
		retries = newRetryTracker()
	}
	return &Worker{
		id:      id,
		queue:   q,
		sources: srcs,
		store:   store,
		policy:  validate.NewPolicy(),
		stats:   stats,
		comp:    NewComparator(store),
		retries: retries,
		cfg:     cfg,
	}
}

// Run processes tasks until a stop task arrives or the context is
// cancelled. It always releases source resources on the way out.
func (w *Worker) Run(ctx context.Context) {
	defer w.closeSources()

	if !w.initSources(ctx) {
		log.Printf("[worker %d] no usable sources, standing down", w.id)
		w.standDown(ctx)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := w.queue.Pop(w.cfg.PopTimeout)
		if !ok {
			continue
		}
		if task.Stop {
			log.Printf("[worker %d] stop signal received", w.id)
			return
		}

		w.handle(ctx, task.Code)
		time.Sleep(w.cfg.Delay)
	}
}

// standDown waits for the stop signal without consuming work. A work task
// that lands here goes straight back on the queue for a healthy worker and
// costs no attempt; Push before TaskDone keeps Join armed.
func (w *Worker) standDown(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := w.queue.Pop(w.cfg.PopTimeout)
		if !ok {
			continue
		}
		if task.Stop {
			log.Printf("[worker %d] stop signal received", w.id)
			return
		}

		w.queue.Push(task.Code)
		w.queue.TaskDone()
		// Let a healthy worker win the race for the re-pushed task.
		time.Sleep(w.cfg.PopTimeout)
	}
}

func (w *Worker) initSources(ctx context.Context) bool {
	usable := w.sources[:0]
	for _, src := range w.sources {
		if init, ok := src.(sources.Initializer); ok {
			if err := init.Init(ctx); err != nil {
				log.Printf("[worker %d] init %s failed: %v", w.id, src.Name(), err)
				continue
			}
		}
		usable = append(usable, src)
	}
	w.sources = usable
	return len(w.sources) > 0
}

func (w *Worker) closeSources() {
	for _, src := range w.sources {
		if closer, ok := src.(sources.Closer); ok {
			closer.Close()
		}
	}
}

// handle runs one task to completion. TaskDone fires on every exit path
// exactly once; a retry pushes the replacement task before acknowledging
// the current one so Join stays armed.
func (w *Worker) handle(ctx context.Context, code string) {
	defer w.queue.TaskDone()

	if w.cfg.MaxCalls > 0 && w.stats.Calls() >= w.cfg.MaxCalls {
		log.Printf("[worker %d] call budget exhausted, dropping %s", w.id, code)
		w.stats.AddFailed()
		return
	}

	rec := w.fetch(ctx, code)
	if rec == nil {
		w.retryOrFail(code)
		return
	}

	if w.cfg.Verify {
		w.verify(rec)
		return
	}

	saved, err := w.store.InsertMarketRecord(rec)
	if err != nil {
		log.Printf("[worker %d] save %s failed: %v", w.id, code, err)
		w.retryOrFail(code)
		return
	}
	if saved {
		w.stats.AddSaved()
	} else {
		w.stats.AddSkipped()
	}
}

// fetch walks the source chain in order and returns the first bar that
// passes validation. The call budget is charged per upstream call, so a
// long chain cannot overshoot it.
func (w *Worker) fetch(ctx context.Context, code string) *models.MarketRecord {
	for _, src := range w.sources {
		if !w.stats.TryCall(w.cfg.MaxCalls) {
			log.Printf("[worker %d] call budget exhausted mid-chain for %s", w.id, code)
			return nil
		}
		rec := src.Fetch(ctx, code, w.cfg.Date)
		if rec == nil {
			continue
		}
		if !w.policy.ValidRecord(rec) {
			log.Printf("[worker %d] %s from %s rejected by validation", w.id, code, src.Name())
			continue
		}
		return rec
	}
	return nil
}

func (w *Worker) verify(rec *models.MarketRecord) {
	match, diffs, err := w.comp.Compare(rec)
	if err != nil {
		log.Printf("[worker %d] compare %s failed: %v", w.id, rec.Code, err)
		w.stats.AddFailed()
		return
	}
	if match {
		w.stats.AddMatched()
		return
	}
	w.stats.AddMismatched()
	log.Printf("[worker %d] %s %s mismatch: %s", w.id, rec.Code, rec.Date, strings.Join(diffs, "; "))

	if w.cfg.Fix {
		w.repair(rec)
	}
}

// repair overwrites the stored bar with the freshly fetched one. This is
// the only path that mutates an existing record.
func (w *Worker) repair(rec *models.MarketRecord) {
	updated, err := w.store.UpdateMarketRecord(rec.Code, rec.Date, map[string]interface{}{
		"open":   rec.Open,
		"high":   rec.High,
		"low":    rec.Low,
		"close":  rec.Close,
		"volume": rec.Volume,
	})
	if err != nil {
		log.Printf("[worker %d] repair %s failed: %v", w.id, rec.Code, err)
		return
	}
	if !updated {
		// Mismatch was a missing row; insert it instead.
		if _, err := w.store.InsertMarketRecord(rec); err != nil {
			log.Printf("[worker %d] repair insert %s failed: %v", w.id, rec.Code, err)
			return
		}
	}
	log.Printf("[worker %d] %s %s repaired", w.id, rec.Code, rec.Date)
}

// retryOrFail re-enqueues the stock until its attempt budget runs out.
func (w *Worker) retryOrFail(code string) {
	n := w.retries.next(code)
	if n < w.cfg.MaxRetries {
		log.Printf("[worker %d] %s attempt %d failed, requeueing", w.id, code, n)
		w.queue.Push(code)
		return
	}
	log.Printf("[worker %d] %s failed after %d attempts", w.id, code, n)
	w.stats.AddFailed()
}
