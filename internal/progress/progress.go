// Package progress persists per-stock crawl state to a JSON file so a run
// can resume after a crash or restart.
package progress

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// StockState is the durable record for one stock.
type StockState struct {
	Status      string  `json:"status"`
	Score       float64 `json:"score"`
	Attempts    int     `json:"attempts"`
	LastAttempt string  `json:"last_attempt"`
	Error       string  `json:"error,omitempty"`
}

type snapshot struct {
	StartTime        string                `json:"start_time"`
	LastUpdate       string                `json:"last_update"`
	TotalStocks      int                   `json:"total_stocks"`
	ProcessedStocks  int                   `json:"processed_stocks"`
	SuccessfulStocks int                   `json:"successful_stocks"`
	FailedStocks     int                   `json:"failed_stocks"`
	MaxRetries       int                   `json:"max_retries"`
	Stocks           map[string]StockState `json:"stocks_status"`
}

// Summary is a point-in-time view of the run counters.
type Summary struct {
	Total       int     `json:"total"`
	Processed   int     `json:"processed"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Store owns the progress file. All mutations rewrite the file atomically
// (write to a temp file, then rename) so an abrupt kill can never leave a
// torn snapshot behind: either the old file or the new file survives.
type Store struct {
	mu         sync.Mutex
	path       string
	maxRetries int
	freshness  time.Duration
	data       snapshot
}

// NewStore loads prior state from path. An unreadable or corrupt file is
// logged and replaced with a clean slate, so every stock counts as pending
// again. Re-running an already processed stock is safe.
func NewStore(path string, maxRetries, freshnessDays int) *Store {
	s := &Store{
		path:       path,
		maxRetries: maxRetries,
		freshness:  time.Duration(freshnessDays) * 24 * time.Hour,
	}
	s.data = s.load()
	return s
}

func (s *Store) load() snapshot {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[progress] cannot read %s: %v, starting fresh", s.path, err)
		}
		return s.defaultSnapshot()
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("[progress] corrupt progress file %s: %v, starting fresh", s.path, err)
		return s.defaultSnapshot()
	}
	if snap.Stocks == nil {
		snap.Stocks = make(map[string]StockState)
	}
	if snap.MaxRetries == 0 {
		snap.MaxRetries = s.maxRetries
	}
	return snap
}

func (s *Store) defaultSnapshot() snapshot {
	now := time.Now().Format(time.RFC3339)
	return snapshot{
		StartTime:  now,
		LastUpdate: now,
		MaxRetries: s.maxRetries,
		Stocks:     make(map[string]StockState),
	}
}

// save writes the snapshot via temp-file-and-rename. Callers hold s.mu.
func (s *Store) save() {
	s.data.LastUpdate = time.Now().Format(time.RFC3339)

	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		log.Printf("[progress] marshal failed: %v", err)
		return
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		log.Printf("[progress] cannot create temp file: %v", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Printf("[progress] write failed: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		log.Printf("[progress] close failed: %v", err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		log.Printf("[progress] rename failed: %v", err)
	}
}

// SetTotal records the size of the entity universe for reporting.
func (s *Store) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalStocks = n
	s.save()
}

// ShouldProcess reports whether a stock is eligible for (re)processing:
// never attempted, failed with attempts under the retry bound, or succeeded
// longer ago than the freshness window.
func (s *Store) ShouldProcess(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldProcess(code)
}

func (s *Store) shouldProcess(code string) bool {
	state, ok := s.data.Stocks[code]
	if !ok {
		return true
	}

	if state.Status == StatusSuccess {
		if last, err := time.Parse(time.RFC3339, state.LastAttempt); err == nil {
			if time.Since(last) < s.freshness {
				return false
			}
		}
		// Stale success: eligible for a refresh.
		return true
	}

	return state.Attempts < s.data.MaxRetries
}

// BatchToProcess scans codes in the given order and returns the first n
// eligible ones, short-circuiting once n is reached.
func (s *Store) BatchToProcess(codes []string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]string, 0, n)
	for _, code := range codes {
		if s.shouldProcess(code) {
			batch = append(batch, code)
			if len(batch) >= n {
				break
			}
		}
	}
	return batch
}

// MarkSuccess records a successful attempt with its score. A fresh success
// always supersedes a prior failed state.
func (s *Store) MarkSuccess(code string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.data.Stocks[code]
	state.Status = StatusSuccess
	state.Score = score
	state.Attempts++
	state.LastAttempt = time.Now().Format(time.RFC3339)
	state.Error = ""
	s.data.Stocks[code] = state

	s.data.SuccessfulStocks++
	s.data.ProcessedStocks++
	s.save()
}

// MarkFailed records a failed attempt. The failed counter increments only
// once per stock, at the attempt that exhausts the retry bound.
func (s *Store) MarkFailed(code string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.data.Stocks[code]
	state.Status = StatusFailed
	state.Attempts++
	state.LastAttempt = time.Now().Format(time.RFC3339)
	state.Error = reason
	s.data.Stocks[code] = state

	if state.Attempts == s.data.MaxRetries {
		s.data.FailedStocks++
	}
	s.data.ProcessedStocks++
	s.save()
}

// Attempts returns the recorded attempt count for a stock.
func (s *Store) Attempts(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Stocks[code].Attempts
}

// Score returns the last recorded score for a stock, or -1 when the stock
// has no successful attempt.
func (s *Store) Score(code string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.data.Stocks[code]
	if !ok || state.Status != StatusSuccess {
		return -1.0
	}
	return state.Score
}

// Scores returns the score of every successfully processed stock.
func (s *Store) Scores() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]float64, len(s.data.Stocks))
	for code, state := range s.data.Stocks {
		if state.Status == StatusSuccess {
			scores[code] = state.Score
		}
	}
	return scores
}

// GetSummary returns the run counters.
func (s *Store) GetSummary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Total:      s.data.TotalStocks,
		Processed:  s.data.ProcessedStocks,
		Successful: s.data.SuccessfulStocks,
		Failed:     s.data.FailedStocks,
	}
	if sum.Processed > 0 {
		sum.SuccessRate = float64(sum.Successful) / float64(sum.Processed) * 100
	}
	return sum
}

// String renders the summary as a single log-friendly line.
func (sum Summary) String() string {
	if sum.Total == 0 {
		return "no stocks processed yet"
	}
	pct := float64(sum.Processed) / float64(sum.Total) * 100
	return fmt.Sprintf("progress: %d/%d (%.1f%%) | success rate: %.1f%% | failed: %d",
		sum.Processed, sum.Total, pct, sum.SuccessRate, sum.Failed)
}
