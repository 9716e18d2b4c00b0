package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bxxst/aixbt-agent/internal/application"
	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
	"github.com/bxxst/aixbt-agent/internal/infra/ai/prompt"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	args := m.Called(ctx, systemPrompt, userContent)
	return args.String(0), args.Error(1)
}

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newService(c analysis.Completer) *Service {
	return NewService(c, Options{
		Timeout:     50 * time.Millisecond,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}, application.FixedClock{At: now})
}

func TestAnalyzeSuccess(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, prompt.GetSystemPrompt(), `"$ABC"`).Return("$ABC is a DEX token", nil).Once()

	res, err := newService(m).Analyze(context.Background(), "$ABC")

	require.NoError(t, err)
	assert.Equal(t, analysis.Result{Ticker: "$ABC", Summary: "$ABC is a DEX token", GeneratedAt: now}, res)
	m.AssertExpectations(t)
}

func TestAnalyzeRetriesRateLimit(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", analysis.NewError(analysis.KindRateLimited, true, errors.New("429"))).Twice()
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("finally", nil).Once()

	res, err := newService(m).Analyze(context.Background(), "$ABC")

	require.NoError(t, err)
	assert.Equal(t, "finally", res.Summary)
	m.AssertNumberOfCalls(t, "Complete", 3)
}

func TestAnalyzeGivesUpAfterMaxAttempts(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", analysis.NewError(analysis.KindUpstream, true, errors.New("502")))

	res, err := newService(m).Analyze(context.Background(), "$XYZ")

	var ae *analysis.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, analysis.KindUpstream, ae.Kind)
	assert.Equal(t, 3, ae.Attempts)
	assert.Equal(t, ticker.Symbol("$XYZ"), ae.Ticker)
	assert.Equal(t, analysis.FallbackSummary, res.Summary)
	m.AssertNumberOfCalls(t, "Complete", 3)
}

func TestAnalyzeDoesNotRetryPermanentErrors(t *testing.T) {
	cases := map[string]error{
		"malformed":    analysis.NewError(analysis.KindMalformed, false, analysis.ErrMalformedResponse),
		"unauthorized": analysis.NewError(analysis.KindUpstream, false, errors.New("401")),
	}
	for name, backendErr := range cases {
		t.Run(name, func(t *testing.T) {
			m := new(mockCompleter)
			m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", backendErr)

			res, err := newService(m).Analyze(context.Background(), "$ABC")

			assert.Error(t, err)
			assert.Equal(t, analysis.FallbackSummary, res.Summary)
			m.AssertNumberOfCalls(t, "Complete", 1)
		})
	}
}

func TestAnalyzeEmptySummaryIsMalformed(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	res, err := newService(m).Analyze(context.Background(), "$ABC")

	assert.ErrorIs(t, err, analysis.ErrMalformedResponse)
	assert.Equal(t, analysis.FallbackSummary, res.Summary)
	m.AssertNumberOfCalls(t, "Complete", 1)
}

func TestAnalyzeTimeout(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", errors.New("request aborted"))

	start := time.Now()
	res, err := newService(m).Analyze(context.Background(), "$ABC")

	assert.ErrorIs(t, err, analysis.ErrTimeout)
	assert.Equal(t, analysis.FallbackSummary, res.Summary)
	assert.Less(t, time.Since(start), time.Second)
	m.AssertNumberOfCalls(t, "Complete", 1)
}

func TestAnalyzeUnresolvedNeverCallsOut(t *testing.T) {
	m := new(mockCompleter)

	res, err := newService(m).Analyze(context.Background(), ticker.Unresolved)

	assert.Error(t, err)
	assert.Equal(t, analysis.FallbackSummary, res.Summary)
	m.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeUntypedErrorIsTransient(t *testing.T) {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil).Once()

	_, err := newService(m).Analyze(context.Background(), "$ABC")

	require.NoError(t, err)
	m.AssertNumberOfCalls(t, "Complete", 2)
}

func TestBackoff(t *testing.T) {
	s := NewService(nil, Options{BaseDelay: time.Second, MaxDelay: 5 * time.Second}, nil)
	assert.Equal(t, time.Second, s.backoff(1))
	assert.Equal(t, 2*time.Second, s.backoff(2))
	assert.Equal(t, 4*time.Second, s.backoff(3))
	assert.Equal(t, 5*time.Second, s.backoff(4))
}

func TestNewServiceDefaults(t *testing.T) {
	s := NewService(nil, Options{}, nil)
	assert.Equal(t, DefaultOptions(), s.opts)
}
