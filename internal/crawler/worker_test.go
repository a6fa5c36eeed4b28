package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riching/stock-scraper/internal/models"
	"github.com/riching/stock-scraper/internal/queue"
	"github.com/riching/stock-scraper/internal/sources"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*models.MarketRecord
	codes   []string
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.MarketRecord)}
}

func (f *fakeStore) key(code, date string) string { return code + "|" + date }

func (f *fakeStore) InsertMarketRecord(rec *models.MarketRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return false, f.saveErr
	}
	k := f.key(rec.Code, rec.Date)
	if _, ok := f.records[k]; ok {
		return false, nil
	}
	f.records[k] = rec
	return true, nil
}

func (f *fakeStore) UpdateMarketRecord(code, date string, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[f.key(code, date)]
	if !ok {
		return false, nil
	}
	if v, ok := fields["open"]; ok {
		rec.Open = v.(float64)
	}
	if v, ok := fields["high"]; ok {
		rec.High = v.(float64)
	}
	if v, ok := fields["low"]; ok {
		rec.Low = v.(float64)
	}
	if v, ok := fields["close"]; ok {
		rec.Close = v.(float64)
	}
	if v, ok := fields["volume"]; ok {
		rec.Volume = v.(int64)
	}
	return true, nil
}

func (f *fakeStore) GetMarketRecord(code, date string) (*models.MarketRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[f.key(code, date)], nil
}

func (f *fakeStore) AllStockCodes() ([]string, error) { return f.codes, nil }

func (f *fakeStore) DeleteDate(date string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, rec := range f.records {
		if rec.Date == date {
			delete(f.records, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountForDate(date string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, rec := range f.records {
		if rec.Date == date {
			n++
		}
	}
	return n, nil
}

type fakeSource struct {
	mu    sync.Mutex
	name  string
	bars  map[string]*models.MarketRecord
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, code, date string) *models.MarketRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.bars[code]
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type brokenInitSource struct {
	fakeSource
}

func (b *brokenInitSource) Init(context.Context) error {
	return errors.New("session refused")
}

func goodBar(code string) *models.MarketRecord {
	return &models.MarketRecord{
		Code: code, Date: "2026-02-13",
		Open: 10.2, High: 10.9, Low: 10.1, Close: 10.8, Volume: 1000,
	}
}

func runPool(t *testing.T, q *queue.TaskQueue, workers []*Worker, codes []string) {
	t.Helper()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(context.Background())
		}(w)
	}

	for _, code := range codes {
		q.Push(code)
	}
	q.Join()
	for range workers {
		q.PushStop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func testCfg() WorkerConfig {
	return WorkerConfig{
		Date:       "2026-02-13",
		MaxRetries: 3,
		PopTimeout: 50 * time.Millisecond,
	}
}

func TestWorkerSavesFetchedBar(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{"000001": goodBar("000001")}}
	stats := NewStats()
	q := queue.New(10)

	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, testCfg())
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Saved)
	assert.Equal(t, 0, snap.Failed)

	rec, err := store.GetMarketRecord("000001", "2026-02-13")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 10.8, rec.Close)
}

func TestWorkerSkipsExistingRecord(t *testing.T) {
	store := newFakeStore()
	store.records[store.key("000001", "2026-02-13")] = goodBar("000001")

	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{"000001": goodBar("000001")}}
	stats := NewStats()
	q := queue.New(10)

	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, testCfg())
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Saved)
	assert.Equal(t, 1, snap.Skipped)
}

func TestWorkerRetriesUntilBudgetExhausted(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "empty", bars: map[string]*models.MarketRecord{}}
	stats := NewStats()
	q := queue.New(10)

	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, testCfg())
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 3, src.callCount())
}

func TestWorkerFallsBackThroughSourceChain(t *testing.T) {
	store := newFakeStore()
	primary := &fakeSource{name: "primary", bars: map[string]*models.MarketRecord{}}
	backup := &fakeSource{name: "backup", bars: map[string]*models.MarketRecord{"000001": goodBar("000001")}}
	stats := NewStats()
	q := queue.New(10)

	w := NewWorker(0, q, []sources.PriceSource{primary, backup}, store, stats, nil, testCfg())
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Saved)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, backup.callCount())
}

func TestWorkerRejectsInconsistentBar(t *testing.T) {
	store := newFakeStore()
	bad := goodBar("000001")
	bad.High = 9.0 // below open
	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{"000001": bad}}
	stats := NewStats()
	q := queue.New(10)

	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, testCfg())
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Saved)
	assert.Equal(t, 1, snap.Failed)
}

func TestWorkerVerifyMode(t *testing.T) {
	store := newFakeStore()
	stored := goodBar("000001")
	store.records[store.key("000001", "2026-02-13")] = stored

	drifted := goodBar("000002")
	drifted.Close = 11.5
	storedDrifted := goodBar("000002")
	store.records[store.key("000002", "2026-02-13")] = storedDrifted

	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{
		"000001": goodBar("000001"),
		"000002": drifted,
	}}
	stats := NewStats()
	q := queue.New(10)

	cfg := testCfg()
	cfg.Verify = true
	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, cfg)
	runPool(t, q, []*Worker{w}, []string{"000001", "000002"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Matched)
	assert.Equal(t, 1, snap.Mismatched)
	assert.Equal(t, 0, snap.Saved)
}

func TestWorkerVerifyFixRepairsDrift(t *testing.T) {
	store := newFakeStore()
	stale := goodBar("000001")
	stale.Close = 99.0
	store.records[store.key("000001", "2026-02-13")] = stale

	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{"000001": goodBar("000001")}}
	stats := NewStats()
	q := queue.New(10)

	cfg := testCfg()
	cfg.Verify = true
	cfg.Fix = true
	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, cfg)
	runPool(t, q, []*Worker{w}, []string{"000001"})

	assert.Equal(t, 1, stats.Snapshot().Mismatched)
	rec, err := store.GetMarketRecord("000001", "2026-02-13")
	require.NoError(t, err)
	assert.Equal(t, 10.8, rec.Close)
}

func TestWorkerCallBudget(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{name: "fake", bars: map[string]*models.MarketRecord{
		"000001": goodBar("000001"),
		"000002": goodBar("000002"),
	}}
	stats := NewStats()
	q := queue.New(10)

	cfg := testCfg()
	cfg.MaxCalls = 1
	w := NewWorker(0, q, []sources.PriceSource{src}, store, stats, nil, cfg)
	runPool(t, q, []*Worker{w}, []string{"000001", "000002"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Saved)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, src.callCount())
}

func TestWorkerWithDeadSourcesLeavesTasksToHealthyWorkers(t *testing.T) {
	store := newFakeStore()
	stats := NewStats()
	retries := newRetryTracker()
	q := queue.New(10)

	dead := &brokenInitSource{fakeSource: fakeSource{
		name: "dead",
		bars: map[string]*models.MarketRecord{"000001": goodBar("000001")},
	}}
	healthy := &fakeSource{name: "healthy", bars: map[string]*models.MarketRecord{"000001": goodBar("000001")}}

	wd := NewWorker(0, q, []sources.PriceSource{dead}, store, stats, retries, testCfg())
	wh := NewWorker(1, q, []sources.PriceSource{healthy}, store, stats, retries, testCfg())
	runPool(t, q, []*Worker{wd, wh}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Saved)
	assert.Equal(t, 0, snap.Failed)
	assert.Equal(t, 0, dead.callCount())
	assert.Equal(t, 1, healthy.callCount())

	rec, err := store.GetMarketRecord("000001", "2026-02-13")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestCallBudgetBoundsSourceChain(t *testing.T) {
	store := newFakeStore()
	stats := NewStats()
	q := queue.New(10)

	first := &fakeSource{name: "first", bars: map[string]*models.MarketRecord{}}
	second := &fakeSource{name: "second", bars: map[string]*models.MarketRecord{}}
	third := &fakeSource{name: "third", bars: map[string]*models.MarketRecord{}}

	cfg := testCfg()
	cfg.MaxCalls = 2
	w := NewWorker(0, q, []sources.PriceSource{first, second, third}, store, stats, nil, cfg)
	runPool(t, q, []*Worker{w}, []string{"000001"})

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap.Calls)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
	assert.Equal(t, 0, third.callCount())
}

func TestRetrySharedAcrossWorkers(t *testing.T) {
	store := newFakeStore()
	stats := NewStats()
	retries := newRetryTracker()
	q := queue.New(10)

	srcA := &fakeSource{name: "a", bars: map[string]*models.MarketRecord{}}
	srcB := &fakeSource{name: "b", bars: map[string]*models.MarketRecord{}}
	wa := NewWorker(0, q, []sources.PriceSource{srcA}, store, stats, retries, testCfg())
	wb := NewWorker(1, q, []sources.PriceSource{srcB}, store, stats, retries, testCfg())

	runPool(t, q, []*Worker{wa, wb}, []string{"000001"})

	assert.Equal(t, 1, stats.Snapshot().Failed)
	assert.Equal(t, 3, srcA.callCount()+srcB.callCount())
}
