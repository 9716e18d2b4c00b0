package enrich

import (
	"context"
	"sync"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/domain/posts"
	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

// DefaultMaxInFlight bounds concurrent analyses when no limit is configured.
const DefaultMaxInFlight = 4

// Output is the enriched batch, one message per input post, in input order.
type Output struct {
	Messages []digest.Message
	Stats    digest.Stats
}

// Service drives a batch of posts through extraction, analysis and composition.
type Service struct {
	analyzer    analysis.Analyzer
	maxInFlight int
}

func NewService(analyzer analysis.Analyzer, maxInFlight int) *Service {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Service{analyzer: analyzer, maxInFlight: maxInFlight}
}

// Run enriches posts. Per-ticker failures become fallback summaries; the only
// error returned is the caller's cancellation.
func (s *Service) Run(ctx context.Context, batch []posts.Post) (Output, error) {
	out := Output{Stats: digest.Stats{Posts: len(batch)}}
	if len(batch) == 0 {
		return out, nil
	}

	cache := NewCache()
	symbols := make([]ticker.Symbol, len(batch))
	futures := make([]*Future, len(batch))
	var queue []*Future // first-appearance order

	for i, p := range batch {
		symbols[i] = ticker.Extract(p.Text)
		f, created := cache.GetOrCreate(symbols[i])
		if f == nil {
			out.Stats.Unresolved++
			continue
		}
		futures[i] = f
		if created {
			queue = append(queue, f)
		}
	}
	out.Stats.Analyses = cache.Len()

	logger.Debug(ctx, "Enriching batch",
		"posts", len(batch),
		"distinct_tickers", len(queue),
		"unresolved", out.Stats.Unresolved,
	)

	s.dispatch(ctx, queue)
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	failed := make(map[*Future]bool, len(queue))
	out.Messages = make([]digest.Message, len(batch))
	for i, p := range batch {
		summary := analysis.NoProjectInfo
		if f := futures[i]; f != nil {
			res, err := f.Wait(ctx)
			if ctx.Err() != nil {
				return Output{}, ctx.Err()
			}
			summary = res.Summary
			if err != nil {
				summary = analysis.FallbackSummary
				if !failed[f] {
					failed[f] = true
					kind, _ := analysis.KindOf(err)
					logger.Warn(ctx, "Project analysis failed, using fallback",
						"ticker", string(f.Ticker),
						"kind", string(kind),
						"error", err.Error(),
					)
				}
			}
		}
		out.Messages[i] = digest.NewMessage(p, symbols[i], summary)
	}
	out.Stats.AnalysesFailed = len(failed)
	return out, nil
}

// dispatch runs the queued analyses with at most maxInFlight in progress,
// started in queue order, and returns once every worker has exited.
func (s *Service) dispatch(ctx context.Context, queue []*Future) {
	if len(queue) == 0 {
		return
	}
	workers := min(s.maxInFlight, len(queue))
	jobs := make(chan *Future)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				f.Run(ctx, s.analyzer)
			}
		}()
	}

feed:
	for _, f := range queue {
		select {
		case jobs <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}
