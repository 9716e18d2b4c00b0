package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: level, Format: "json", Output: &buf}))
	return &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestAnalysisRecord(t *testing.T) {
	buf := captureJSON(t, "INFO")

	Analysis(context.Background(), "$ABC", "bullish", "attempts", 2)

	rec := lastRecord(t, buf)
	assert.Equal(t, "Generated project analysis", rec["msg"])
	assert.Equal(t, "ANALYSIS", rec["type"])
	assert.Equal(t, "$ABC", rec["ticker"])
	assert.Equal(t, "bullish", rec["summary"])
	assert.Equal(t, float64(2), rec["attempts"])
	assert.Equal(t, serviceName, rec["service"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := captureJSON(t, "INFO")
	Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	buf = captureJSON(t, "DEBUG")
	Debug(context.Background(), "shown")
	assert.Equal(t, "shown", lastRecord(t, buf)["msg"])
}

func TestErrorWithErr(t *testing.T) {
	buf := captureJSON(t, "INFO")
	ErrorWithErr(context.Background(), "boom", errors.New("bad thing"), "ticker", "$X")

	rec := lastRecord(t, buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "bad thing", rec["error"])
	assert.Equal(t, "$X", rec["ticker"])
}

func TestOperationTimerWithoutTracing(t *testing.T) {
	buf := captureJSON(t, "INFO")
	op := StartOperation(context.Background(), "analysis.Analyze", "ticker", "$ABC")
	assert.NotNil(t, op.Context())
	op.EndWithError(errors.New("timeout"))

	rec := lastRecord(t, buf)
	assert.Equal(t, "Operation failed", rec["msg"])
	assert.Equal(t, "$ABC", rec["ticker"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nope"))
}

func TestTracingAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "INFO", Tracing: true, Output: &buf}))
	t.Cleanup(func() {
		_ = Shutdown(context.Background())
		_ = InitWithConfig(LogConfig{Output: &bytes.Buffer{}})
	})

	op := StartOperation(context.Background(), "digest.ScrapeTweets")
	Info(op.Context(), "inside")
	op.End()

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil && rec["msg"] == "inside" {
			assert.NotEmpty(t, rec["trace_id"])
			return
		}
	}
	t.Fatal("record not found")
}
