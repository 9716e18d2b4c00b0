package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/domain/posts"
)

type mockCapability struct{ mock.Mock }

func (m *mockCapability) ScrapeTweets(ctx context.Context, count int) (*digest.Batch, error) {
	args := m.Called(ctx, count)
	b, _ := args.Get(0).(*digest.Batch)
	return b, args.Error(1)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleScrapeTweets(t *testing.T) {
	svc := new(mockCapability)
	batch := &digest.Batch{Messages: []digest.Message{
		{Ticker: "$ABC", Text: "Check out $ABC", AnalysisLink: "https://dexscreener.com/$ABC",
			SourceURL: "https://x.com/aixbt_agent/status/1", Summary: "ok"},
	}}
	svc.On("ScrapeTweets", mock.Anything, 3).Return(batch, nil)

	res, err := HandleScrapeTweets(svc)(context.Background(), callRequest(map[string]any{"count": float64(3)}))

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, batch.Text(), textOf(t, res))
	svc.AssertExpectations(t)
}

func TestHandleScrapeTweetsDefaultCount(t *testing.T) {
	svc := new(mockCapability)
	svc.On("ScrapeTweets", mock.Anything, 5).Return(&digest.Batch{}, nil)

	res, err := HandleScrapeTweets(svc)(context.Background(), callRequest(nil))

	require.NoError(t, err)
	assert.Equal(t, "", textOf(t, res))
	svc.AssertExpectations(t)
}

func TestHandleScrapeTweetsError(t *testing.T) {
	svc := new(mockCapability)
	svc.On("ScrapeTweets", mock.Anything, 5).
		Return(nil, errors.Join(posts.ErrSourceUnavailable, errors.New("429")))

	res, err := HandleScrapeTweets(svc)(context.Background(), callRequest(map[string]any{"count": 5}))

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "source unavailable")
}

func TestScrapeTweetsTool(t *testing.T) {
	tool := ScrapeTweetsTool()
	assert.Equal(t, "scrapeTweets", tool.Name)
	assert.Contains(t, tool.InputSchema.Properties, "count")
}

func TestNewRegistersTool(t *testing.T) {
	s := New(new(mockCapability), "test")

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"scrapeTweets"`)
}
