package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/bxxst/aixbt-agent/internal/domain/posts"
	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

// Separator joins rendered messages when the caller expects one string.
const Separator = "\n\n"

// Message is the enriched output for exactly one input post.
type Message struct {
	PostID       string        `json:"post_id"`
	Ticker       ticker.Symbol `json:"ticker"`
	Text         string        `json:"text"`
	SourceURL    string        `json:"source_url"`
	AnalysisLink string        `json:"analysis_link"`
	Summary      string        `json:"summary"`
}

// AnalysisLink builds the dexscreener link for a ticker, '$' included.
func AnalysisLink(sym ticker.Symbol) string {
	return "https://dexscreener.com/" + string(sym)
}

// NewMessage assembles the output entry for a post.
func NewMessage(p posts.Post, sym ticker.Symbol, summary string) Message {
	return Message{
		PostID:       p.ID,
		Ticker:       sym,
		Text:         p.Text,
		SourceURL:    p.SourceURL,
		AnalysisLink: AnalysisLink(sym),
		Summary:      summary,
	}
}

// Render produces the five-line shareable layout.
func (m Message) Render() string {
	return fmt.Sprintf("Ticker: %s\nTweet: %s\nDexscreener: %s\nTwitter: %s\nProject Info: %s",
		m.Ticker, m.Text, m.AnalysisLink, m.SourceURL, m.Summary)
}

// Compose renders a post, its ticker and its analysis summary.
func Compose(p posts.Post, sym ticker.Symbol, summary string) string {
	return NewMessage(p, sym, summary).Render()
}

// Join renders all messages in order, separated by a blank line.
func Join(msgs []Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Render()
	}
	return strings.Join(parts, Separator)
}

// Stats summarizes one batch run.
type Stats struct {
	Posts          int `json:"posts"`
	Unresolved     int `json:"unresolved"`
	Analyses       int `json:"analyses"`
	AnalysesFailed int `json:"analyses_failed"`
}

// Batch is the result of one scrapeTweets invocation.
type Batch struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	GeneratedAt time.Time `json:"generated_at"`
	Messages    []Message `json:"messages"`
	Stats       Stats     `json:"stats"`
}

// Text is the capability-call representation of the batch.
func (b *Batch) Text() string {
	return Join(b.Messages)
}
