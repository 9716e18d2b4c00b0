// Package xapi reads recent posts of an account from the X API v2.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/bxxst/aixbt-agent/internal/domain/posts"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

const (
	DefaultBaseURL   = "https://api.twitter.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 1.0 // requests per second

	// the timeline endpoint only accepts max_results in this window
	minTimelineResults = 5
	maxTimelineResults = 100
)

// Client implements posts.Source.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.Mutex
	userIDs map[string]string
}

var _ posts.Source = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient builds a client authenticating with an app-only bearer token.
func NewClient(bearerToken string, opts ...ClientOption) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = DefaultTimeout

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		userIDs:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer of the X API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (e *APIError) Unwrap() error { return posts.ErrSourceUnavailable }

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type userResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Errors []apiProblem `json:"errors"`
}

type timelineResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	Errors []apiProblem `json:"errors"`
}

// FetchRecentPosts returns up to maxResults of the newest posts of account.
// Every failure wraps posts.ErrSourceUnavailable.
func (c *Client) FetchRecentPosts(ctx context.Context, account string, maxResults int) ([]posts.Post, error) {
	userID, err := c.userID(ctx, account)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(clampResults(maxResults)))
	params.Set("tweet.fields", "created_at")

	var tl timelineResponse
	if err := c.get(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", params, &tl); err != nil {
		return nil, fmt.Errorf("fetch timeline of %s: %w", account, err)
	}
	if len(tl.Data) == 0 && len(tl.Errors) > 0 {
		return nil, fmt.Errorf("fetch timeline of %s: %w: %s", account, posts.ErrSourceUnavailable, tl.Errors[0].Detail)
	}

	out := make([]posts.Post, 0, len(tl.Data))
	for _, t := range tl.Data {
		out = append(out, posts.Post{
			ID:        t.ID,
			Text:      t.Text,
			SourceURL: posts.Permalink(account, t.ID),
			CreatedAt: t.CreatedAt,
		})
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}

	logger.Debug(ctx, "Fetched posts", "account", account, "count", len(out))
	return out, nil
}

// userID resolves and memoizes the numeric id of a username.
func (c *Client) userID(ctx context.Context, account string) (string, error) {
	c.mu.Lock()
	id, ok := c.userIDs[account]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var u userResponse
	if err := c.get(ctx, "/2/users/by/username/"+url.PathEscape(account), nil, &u); err != nil {
		return "", fmt.Errorf("lookup user %s: %w", account, err)
	}
	if u.Data == nil || u.Data.ID == "" {
		msg := "user not found"
		if len(u.Errors) > 0 {
			msg = u.Errors[0].Detail
		}
		return "", fmt.Errorf("lookup user %s: %w: %s", account, posts.ErrSourceUnavailable, msg)
	}

	c.mu.Lock()
	c.userIDs[account] = u.Data.ID
	c.mu.Unlock()
	return u.Data.ID, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", posts.ErrSourceUnavailable, err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", posts.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", posts.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: path, Message: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.Message = "rate limit exhausted, reset at " + resp.Header.Get("x-rate-limit-reset")
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode response: %w", posts.ErrSourceUnavailable, err)
	}
	return nil
}

func clampResults(n int) int {
	if n < minTimelineResults {
		return minTimelineResults
	}
	if n > maxTimelineResults {
		return maxTimelineResults
	}
	return n
}
