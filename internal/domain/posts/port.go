package posts

import (
	"context"
	"errors"
)

// ErrSourceUnavailable wraps every failure of the inbound feed (network, auth, throttling).
var ErrSourceUnavailable = errors.New("source unavailable")

// Source port (inbound social feed)
type Source interface {
	// FetchRecentPosts returns at most maxResults posts, newest first.
	FetchRecentPosts(ctx context.Context, account string, maxResults int) ([]Post, error)
}
