// Package api exposes the monitoring HTTP surface: health, crawl progress
// and daily update status.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riching/stock-scraper/internal/progress"
)

// completionThreshold is the coverage ratio above which a date counts as
// fully updated.
const completionThreshold = 0.95

// coverageStore answers the two universe questions the handlers need.
type coverageStore interface {
	CountForDate(date string) (int64, error)
	CountStocks() (int64, error)
}

// Server wires the monitoring endpoints.
type Server struct {
	store coverageStore
	prog  *progress.Store
}

func NewServer(store coverageStore, prog *progress.Store) *Server {
	return &Server{store: store, prog: prog}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/health", s.health)
	r.GET("/progress", s.progress)
	r.GET("/update-status", s.updateStatus)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) progress(c *gin.Context) {
	c.JSON(http.StatusOK, s.prog.GetSummary())
}

// updateStatus reports whether the given date (default today) is
// sufficiently covered by market records.
func (s *Server) updateStatus(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	covered, err := s.store.CountForDate(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.store.CountStocks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := CoverageStatus(date, covered, total)
	c.JSON(http.StatusOK, status)
}

// Status is the update-status payload.
type Status struct {
	Date     string  `json:"date"`
	Covered  int64   `json:"covered"`
	Total    int64   `json:"total"`
	Ratio    float64 `json:"ratio"`
	Complete bool    `json:"complete"`
}

// CoverageStatus computes the completion verdict for a date. A universe of
// zero stocks is never complete.
func CoverageStatus(date string, covered, total int64) Status {
	st := Status{Date: date, Covered: covered, Total: total}
	if total > 0 {
		st.Ratio = float64(covered) / float64(total)
		st.Complete = st.Ratio >= completionThreshold
	}
	return st
}
