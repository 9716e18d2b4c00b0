package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bxxst/aixbt-agent/internal/application"
	"github.com/bxxst/aixbt-agent/internal/application/enrich"
	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/domain/posts"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

const (
	DefaultCount = 5
	MaxCount     = 100
)

// Enricher turns fetched posts into ordered digest messages.
type Enricher interface {
	Run(ctx context.Context, batch []posts.Post) (enrich.Output, error)
}

// Service implements the scrapeTweets capability.
// Service is safe for concurrent use; every call gets its own batch state.
type Service struct {
	Source     posts.Source
	Enricher   Enricher
	Publishers []digest.Publisher
	Clock      application.Clock
	Account    string

	// NewID defaults to uuid.NewString.
	NewID func() string
}

// ValidateCount resolves the requested post count. Zero means the default.
func ValidateCount(count int) (int, error) {
	if count == 0 {
		return DefaultCount, nil
	}
	if count < 1 || count > MaxCount {
		return 0, fmt.Errorf("%w: %d (allowed 1..%d)", digest.ErrInvalidCount, count, MaxCount)
	}
	return count, nil
}

// ScrapeTweets fetches the latest count posts of the configured account and
// returns them enriched, in feed order. The batch is either complete or not
// returned at all.
func (s *Service) ScrapeTweets(ctx context.Context, count int) (*digest.Batch, error) {
	count, err := ValidateCount(count)
	if err != nil {
		return nil, err
	}

	op := logger.StartOperation(ctx, "digest.ScrapeTweets", "account", s.Account, "count", count)
	ctx = op.Context()

	feed, err := s.Source.FetchRecentPosts(ctx, s.Account, count)
	if err != nil {
		if !errors.Is(err, posts.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", posts.ErrSourceUnavailable, err)
		}
		op.EndWithError(err)
		return nil, err
	}
	if len(feed) > count {
		feed = feed[:count]
	}

	out, err := s.Enricher.Run(ctx, feed)
	if err != nil {
		op.EndWithError(err)
		return nil, err
	}

	b := &digest.Batch{
		ID:          s.newID(),
		Account:     s.Account,
		GeneratedAt: s.now(),
		Messages:    out.Messages,
		Stats:       out.Stats,
	}

	s.publish(ctx, b)

	op.End(
		"batch_id", b.ID,
		"posts", b.Stats.Posts,
		"analyses", b.Stats.Analyses,
		"analyses_failed", b.Stats.AnalysesFailed,
	)
	return b, nil
}

// publish delivers the batch to every publisher. Failures are logged only.
func (s *Service) publish(ctx context.Context, b *digest.Batch) {
	for _, p := range s.Publishers {
		if err := p.Publish(ctx, b); err != nil {
			logger.ErrorWithErr(ctx, "Failed to publish digest", err,
				"publisher", p.Name(),
				"batch_id", b.ID,
			)
			continue
		}
		logger.Debug(ctx, "Digest published", "publisher", p.Name(), "batch_id", b.ID)
	}
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}
