package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bxxst/aixbt-agent/internal/application"
	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
	"github.com/bxxst/aixbt-agent/internal/infra/ai/prompt"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

// Options controls timeout and retry of one Analyze call.
type Options struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultOptions returns the defaults used when a field is zero.
func DefaultOptions() Options {
	return Options{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Service wraps a generative backend with timeout, retry and error normalization.
// Service is safe for concurrent use.
type Service struct {
	client analysis.Completer
	opts   Options
	clock  application.Clock
}

var _ analysis.Analyzer = (*Service)(nil)

func NewService(client analysis.Completer, opts Options, clock application.Clock) *Service {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{client: client, opts: opts, clock: clock}
}

// Analyze generates the project analysis for sym. On failure the returned Result
// still carries the fallback summary, and the error is an *analysis.Error.
func (s *Service) Analyze(ctx context.Context, sym ticker.Symbol) (analysis.Result, error) {
	op := logger.StartOperation(ctx, "analysis.Analyze", "ticker", string(sym))
	ctx = op.Context()

	fallback := analysis.Result{Ticker: sym, Summary: analysis.FallbackSummary, GeneratedAt: s.clock.Now()}
	if !sym.Resolved() {
		err := &analysis.Error{Kind: analysis.KindMalformed, Ticker: sym, Err: fmt.Errorf("ticker %q cannot be analyzed", sym)}
		op.EndWithError(err)
		return fallback, err
	}

	var lastErr *analysis.Error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		summary, err := s.attempt(ctx, sym)
		if err == nil {
			logAnalysis(ctx, sym, summary, attempt)
			op.End("attempts", attempt)
			return analysis.Result{Ticker: sym, Summary: summary, GeneratedAt: s.clock.Now()}, nil
		}

		lastErr = normalize(err)
		lastErr.Ticker = sym
		lastErr.Attempts = attempt

		if !lastErr.Retryable() || attempt == s.opts.MaxAttempts {
			break
		}
		delay := s.backoff(attempt)
		logger.Warn(ctx, "Analysis attempt failed, retrying",
			"ticker", string(sym),
			"attempt", attempt,
			"kind", string(lastErr.Kind),
			"retry_in", delay.String(),
		)
		if err := sleep(ctx, delay); err != nil {
			lastErr = &analysis.Error{Kind: analysis.KindTimeout, Ticker: sym, Attempts: attempt, Err: err}
			break
		}
	}

	op.EndWithError(lastErr, "kind", string(lastErr.Kind))
	return fallback, lastErr
}

func (s *Service) attempt(ctx context.Context, sym ticker.Symbol) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	summary, err := s.client.Complete(attemptCtx, prompt.GetSystemPrompt(), prompt.GetUserPrompt(sym))
	if err != nil {
		// the per-attempt deadline (or caller cancellation) wins over whatever the backend reported
		if ctxErr := attemptCtx.Err(); ctxErr != nil {
			return "", analysis.NewError(analysis.KindTimeout, false, fmt.Errorf("%w: %v", ctxErr, err))
		}
		return "", err
	}
	if summary == "" {
		return "", analysis.NewError(analysis.KindMalformed, false, analysis.ErrMalformedResponse)
	}
	return summary, nil
}

// backoff is BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (s *Service) backoff(attempt int) time.Duration {
	d := s.opts.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.opts.MaxDelay {
			return s.opts.MaxDelay
		}
	}
	return d
}

func normalize(err error) *analysis.Error {
	var ae *analysis.Error
	if errors.As(err, &ae) {
		cp := *ae
		return &cp
	}
	return analysis.NewError(analysis.KindUpstream, true, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logAnalysis never lets a logging failure reach the caller.
func logAnalysis(ctx context.Context, sym ticker.Symbol, summary string, attempts int) {
	defer func() { _ = recover() }()
	logger.Analysis(ctx, string(sym), summary, "attempts", attempts)
}
