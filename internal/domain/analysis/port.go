package analysis

import (
	"context"

	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

// Completer is a generative-text backend. Implementations classify their failures as *Error.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Analyzer produces a project analysis for a ticker.
type Analyzer interface {
	Analyze(ctx context.Context, sym ticker.Symbol) (Result, error)
}
