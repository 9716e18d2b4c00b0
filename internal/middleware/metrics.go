package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	BatchesTotal       atomic.Uint64
	BatchesFailed      atomic.Uint64
	PostsTotal         atomic.Uint64
	AnalysesTotal      atomic.Uint64
	AnalysesFailed     atomic.Uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() {
	globalMetrics.RequestsTotal.Add(1)
}

func IncrementSuccess() {
	globalMetrics.RequestsSuccess.Add(1)
}

func IncrementFailed() {
	globalMetrics.RequestsFailed.Add(1)
}

// RecordBatch counts a completed scrapeTweets batch
func RecordBatch(s digest.Stats) {
	globalMetrics.BatchesTotal.Add(1)
	globalMetrics.PostsTotal.Add(uint64(s.Posts))
	globalMetrics.AnalysesTotal.Add(uint64(s.Analyses))
	globalMetrics.AnalysesFailed.Add(uint64(s.AnalysesFailed))
}

// IncrementBatchesFailed counts a batch that returned an error instead of output
func IncrementBatchesFailed() {
	globalMetrics.BatchesTotal.Add(1)
	globalMetrics.BatchesFailed.Add(1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       globalMetrics.RequestsTotal.Load(),
		"requests_in_progress": globalMetrics.RequestsInProgress.Load(),
		"requests_success":     globalMetrics.RequestsSuccess.Load(),
		"requests_failed":      globalMetrics.RequestsFailed.Load(),
		"batches_total":        globalMetrics.BatchesTotal.Load(),
		"batches_failed":       globalMetrics.BatchesFailed.Load(),
		"posts_total":          globalMetrics.PostsTotal.Load(),
		"analyses_total":       globalMetrics.AnalysesTotal.Load(),
		"analyses_failed":      globalMetrics.AnalysesFailed.Load(),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Metrics tracks request counters
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		globalMetrics.RequestsInProgress.Add(1)
		defer globalMetrics.RequestsInProgress.Add(-1)

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
