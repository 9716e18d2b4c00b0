package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetAgentFromContext(r.Context())))
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"openserv": "secret"})(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bearer", "Bearer secret", http.StatusOK},
		{"raw key", "secret", http.StatusOK},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/scrapeTweets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "openserv", rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuthIgnoresEmptyKeys(t *testing.T) {
	h := APIKeyAuth(map[string]string{"nobody": ""})(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 60, 2)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own budget
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 60, 1)
	rl.Allow("a")
	rl.mu.Lock()
	rl.idleTTL = 0
	rl.mu.Unlock()
	rl.Cleanup()
	assert.Equal(t, 0, rl.size())
}

func TestRateLimiterEvictsIdleClientsInBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := newRateLimiter(ctx, 60, 1, 20*time.Millisecond, 5*time.Millisecond)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		rl.Allow("openserv:" + ip)
	}
	require.Equal(t, 3, rl.size())

	assert.Eventually(t, func() bool { return rl.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRateLimiterKeepsActiveClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := newRateLimiter(ctx, 6000, 100, 50*time.Millisecond, 5*time.Millisecond)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		rl.Allow("busy")
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, rl.size())
}

func TestHealthHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"ok":   HealthCheckFunc(func(context.Context) error { return nil }),
		"down": HealthCheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	}
	rec := httptest.NewRecorder()
	HealthHandler(checkers)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket missing")

	rec = httptest.NewRecorder()
	HealthHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsMiddleware(t *testing.T) {
	before := globalMetrics.RequestsFailed.Load()
	h := MetricsMiddleware(LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, before+1, globalMetrics.RequestsFailed.Load())
}

func TestRecordBatch(t *testing.T) {
	before := GetMetrics()["analyses_total"].(uint64)
	RecordBatch(digest.Stats{Posts: 5, Analyses: 3, AnalysesFailed: 1})
	after := GetMetrics()
	assert.Equal(t, before+3, after["analyses_total"].(uint64))
}

func TestValidateStruct(t *testing.T) {
	type body struct {
		Count int `json:"count" validate:"min=0,max=100"`
	}
	require.NoError(t, ValidateStruct(body{Count: 5}))
	err := ValidateStruct(body{Count: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max=100")
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("  hello\x00 world\x07 "))
}
