package posts

import (
	"fmt"
	"time"
)

// Post is one item read from the social feed. Never mutated after fetch.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Permalink builds the canonical x.com link for a post.
func Permalink(account, id string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", account, id)
}
