package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/infra/ai"
)

const defaultModel = "gemini-2.5-flash"

type Client struct {
	client    *genai.Client
	Model     string
	MaxTokens int
}

var _ analysis.Completer = (*Client)(nil)

// NewClient builds a Gemini backend. baseURL is optional (tests).
func NewClient(ctx context.Context, apiKey, model, baseURL string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{client: client, Model: model, MaxTokens: maxTokens}, nil
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if c.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.Model, genai.Text(userContent), config)
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ai.Malformed("gemini")
	}
	return text, nil
}

// matches "Error 429, Message: ..." as produced by genai.APIError
var statusRegex = regexp.MustCompile(`Error (\d{3}),`)

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ai.FromTransport(err)
	}
	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return ai.FromStatus(429, err)
	}
	if m := statusRegex.FindStringSubmatch(msg); len(m) == 2 {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return ai.FromStatus(code, err)
		}
	}
	return ai.FromTransport(err)
}
