package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/domain/posts"
	"github.com/bxxst/aixbt-agent/internal/logger"
	"github.com/bxxst/aixbt-agent/internal/middleware"
)

// Capability is the use case behind POST /v1/capabilities/scrapeTweets.
type Capability interface {
	ScrapeTweets(ctx context.Context, count int) (*digest.Batch, error)
}

// Options wires the optional parts of the router.
type Options struct {
	APIKeys        map[string]string // agent name -> key; empty disables auth
	RatePerMinute  int
	RateBurst      int
	AllowedOrigins []string
	HealthCheckers map[string]middleware.HealthChecker
	MCP            http.Handler // mounted at /mcp when set
	// Context bounds background work such as rate-limit eviction. Defaults to Background.
	Context context.Context
}

type Router struct {
	svc Capability
}

func NewRouter(svc Capability, opts Options) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(opts.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Group(func(rt chi.Router) {
		if len(opts.APIKeys) > 0 {
			rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		}
		if opts.RatePerMinute > 0 {
			ctx := opts.Context
			if ctx == nil {
				ctx = context.Background()
			}
			rt.Use(middleware.NewRateLimiter(ctx, opts.RatePerMinute, opts.RateBurst).Middleware)
		}

		rt.Post("/v1/capabilities/scrapeTweets", r.wrap(r.handleScrapeTweets))
		if opts.MCP != nil {
			rt.Handle("/mcp", opts.MCP)
		}
	})

	return mux
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks client input errors.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

// statusClientClosedRequest is the nginx convention for a request the caller abandoned.
const statusClientClosedRequest = 499

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var bad errBadRequest
		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &bad), errors.Is(err, digest.ErrInvalidCount):
			status = http.StatusBadRequest
		case errors.Is(err, posts.ErrSourceUnavailable):
			status = http.StatusBadGateway
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			status = statusClientClosedRequest
		}
		switch {
		case status == statusClientClosedRequest:
			logger.Debug(req.Context(), "Request canceled by client", "path", req.URL.Path)
		case status >= http.StatusInternalServerError:
			logger.ErrorWithErr(req.Context(), "Request failed", err, "path", req.URL.Path, "status", status)
		}
		writeJSON(w, status, map[string]string{"error": middleware.SanitizeString(err.Error())})
	}
}

type scrapeTweetsRequest struct {
	Args struct {
		Count int `json:"count" validate:"min=0,max=100"`
	} `json:"args"`
}

type scrapeTweetsResponse struct {
	BatchID  string           `json:"batch_id"`
	Result   string           `json:"result"`
	Messages []digest.Message `json:"messages"`
	Stats    digest.Stats     `json:"stats"`
}

// POST /v1/capabilities/scrapeTweets
// Body: {"args": {"count": 5}}
func (r *Router) handleScrapeTweets(w http.ResponseWriter, req *http.Request) error {
	var body scrapeTweetsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return errBadRequest{fmt.Errorf("invalid body: %w", err)}
	}
	if err := middleware.ValidateStruct(body); err != nil {
		return errBadRequest{err}
	}

	b, err := r.svc.ScrapeTweets(req.Context(), body.Args.Count)
	if err != nil {
		middleware.IncrementBatchesFailed()
		return err
	}
	middleware.RecordBatch(b.Stats)

	msgs := b.Messages
	if msgs == nil {
		msgs = []digest.Message{}
	}
	writeJSON(w, http.StatusOK, scrapeTweetsResponse{
		BatchID:  b.ID,
		Result:   b.Text(),
		Messages: msgs,
		Stats:    b.Stats,
	})
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
