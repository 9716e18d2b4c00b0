package digest

import (
	"context"
	"errors"
)

// ErrInvalidCount rejects a post count outside the supported window.
var ErrInvalidCount = errors.New("invalid count")

// Publisher port (optional delivery of a finished batch)
type Publisher interface {
	Name() string
	Publish(ctx context.Context, b *Batch) error
}
