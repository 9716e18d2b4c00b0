package analysis

import (
	"time"

	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

const (
	// FallbackSummary replaces any analysis that could not be generated.
	FallbackSummary = "Failed to analyze project"
	// NoProjectInfo is used for posts without a resolvable ticker.
	NoProjectInfo = "No project info available"
)

// Result is one generated analysis, shared by every post of the same ticker within a batch.
type Result struct {
	Ticker      ticker.Symbol `json:"ticker"`
	Summary     string        `json:"summary"`
	GeneratedAt time.Time     `json:"generated_at"`
}
