package analysis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(KindRateLimited, false, errors.New("429")))

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrTimeout)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindRateLimited, kind)
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, NewError(KindRateLimited, false, nil).Retryable())
	assert.True(t, NewError(KindUpstream, true, nil).Retryable())
	assert.False(t, NewError(KindUpstream, false, nil).Retryable())
	assert.False(t, NewError(KindTimeout, false, nil).Retryable())
	assert.False(t, NewError(KindMalformed, false, nil).Retryable())
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: KindUpstream, Ticker: "$ABC", Attempts: 3, Err: errors.New("503")}
	assert.Equal(t, "upstream_error for $ABC after 3 attempts: 503", e.Error())

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
