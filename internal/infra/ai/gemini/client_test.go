package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		kind analysis.Kind
	}{
		{"Error 429, Message: quota, Status: RESOURCE_EXHAUSTED, Details: []", analysis.KindRateLimited},
		{"Error 503, Message: overloaded, Status: UNAVAILABLE, Details: []", analysis.KindUpstream},
		{"Error 400, Message: bad, Status: INVALID_ARGUMENT, Details: []", analysis.KindUpstream},
		{"dial tcp: connection refused", analysis.KindUpstream},
	}
	for _, tc := range cases {
		kind, ok := analysis.KindOf(classify(errors.New(tc.msg)))
		require.True(t, ok, tc.msg)
		assert.Equal(t, tc.kind, kind, tc.msg)
	}

	var ae *analysis.Error
	require.ErrorAs(t, classify(errors.New("Error 400, Message: bad")), &ae)
	assert.False(t, ae.Retryable())
	assert.Equal(t, analysis.KindTimeout, mustKind(t, classify(context.DeadlineExceeded)))
}

func mustKind(t *testing.T, err error) analysis.Kind {
	t.Helper()
	k, ok := analysis.KindOf(err)
	require.True(t, ok)
	return k
}

func TestCompleteAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"$ABC summary"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "key", "gemini-test", srv.URL, 0)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "system", `"$ABC"`)
	require.NoError(t, err)
	assert.Equal(t, "$ABC summary", out)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "", "", 0)
	assert.Error(t, err)
}
