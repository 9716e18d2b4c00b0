// Package ai holds helpers shared by the generative-text backends.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
)

// FromStatus classifies a failed provider call by its HTTP status.
func FromStatus(status int, err error) *analysis.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return analysis.NewError(analysis.KindRateLimited, true, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return analysis.NewError(analysis.KindTimeout, false, err)
	case status >= 500:
		return analysis.NewError(analysis.KindUpstream, true, err)
	default:
		return analysis.NewError(analysis.KindUpstream, false, err)
	}
}

// FromTransport classifies an error that carried no HTTP status.
func FromTransport(err error) *analysis.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return analysis.NewError(analysis.KindTimeout, false, err)
	}
	return analysis.NewError(analysis.KindUpstream, true, err)
}

// Malformed reports an empty or missing completion.
func Malformed(provider string) *analysis.Error {
	return analysis.NewError(analysis.KindMalformed, false, fmt.Errorf("%s: %w", provider, analysis.ErrMalformedResponse))
}
