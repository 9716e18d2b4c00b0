package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "claude-test", req["model"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	srv := serve(t, 200, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[{"type":"text","text":"$ABC "},{"type":"text","text":"analysis"}],
		"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`)

	out, err := NewClient("key", "claude-test", srv.URL, 0).Complete(context.Background(), "sys", `"$ABC"`)
	require.NoError(t, err)
	assert.Equal(t, "$ABC analysis", out)
}

func TestCompleteEmpty(t *testing.T) {
	srv := serve(t, 200, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],
		"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)

	_, err := NewClient("key", "claude-test", srv.URL, 0).Complete(context.Background(), "sys", "u")
	assert.ErrorIs(t, err, analysis.ErrMalformedResponse)
}

func TestCompleteRateLimited(t *testing.T) {
	srv := serve(t, 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)

	_, err := NewClient("key", "claude-test", srv.URL, 0).Complete(context.Background(), "sys", "u")
	assert.ErrorIs(t, err, analysis.ErrRateLimited)
}
