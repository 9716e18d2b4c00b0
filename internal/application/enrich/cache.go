package enrich

import (
	"context"
	"sync"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

// Future is the single pending or finished analysis of one ticker.
type Future struct {
	Ticker ticker.Symbol

	once   sync.Once
	done   chan struct{}
	result analysis.Result
	err    error
}

func newFuture(sym ticker.Symbol) *Future {
	return &Future{Ticker: sym, done: make(chan struct{})}
}

// Run performs the analysis once. Later calls are no-ops.
func (f *Future) Run(ctx context.Context, a analysis.Analyzer) {
	f.once.Do(func() {
		defer close(f.done)
		f.result, f.err = a.Analyze(ctx, f.Ticker)
		if f.err != nil && f.result.Summary == "" {
			f.result = analysis.Result{Ticker: f.Ticker, Summary: analysis.FallbackSummary}
		}
	})
}

// Wait blocks until Run finished or ctx is done.
func (f *Future) Wait(ctx context.Context) (analysis.Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return analysis.Result{}, ctx.Err()
	}
}

// Cache memoizes analyses by ticker for the lifetime of one batch.
// The entry is inserted before the call starts, so concurrent lookups of the
// same ticker share one outbound request.
type Cache struct {
	mu      sync.Mutex
	entries map[ticker.Symbol]*Future
}

func NewCache() *Cache {
	return &Cache{entries: make(map[ticker.Symbol]*Future)}
}

// GetOrCreate returns the entry for sym and whether this call created it.
// Unresolved tickers are never cached.
func (c *Cache) GetOrCreate(sym ticker.Symbol) (*Future, bool) {
	if !sym.Resolved() {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.entries[sym]; ok {
		return f, false
	}
	f := newFuture(sym)
	c.entries[sym] = f
	return f, true
}

// Len is the number of distinct tickers seen.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
