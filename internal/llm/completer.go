// Package llm provides the text-completion capability used to judge and
// exemplify CPR sections.
//
// The core never assumes structured output: a Completer returns the raw
// model text and callers interpret it heuristically. Every failure to
// obtain that text is reported as an *UpstreamError so callers can tell
// "the provider failed" apart from "the content is invalid".
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Completer issues one completion request.
type Completer interface {
	// Complete sends a system and user prompt and returns the model text.
	// maxTokens bounds the response length.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return f(ctx, systemPrompt, userPrompt, maxTokens)
}

// ErrUpstream matches every *UpstreamError via errors.Is.
var ErrUpstream = errors.New("llm upstream failure")

// FailureKind classifies an upstream failure.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureCanceled    FailureKind = "canceled"
	FailureRateLimited FailureKind = "rate_limited"
	FailureProvider    FailureKind = "provider"
	FailureEmpty       FailureKind = "empty_response"
)

// UpstreamError reports that a completion could not be obtained.
type UpstreamError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s completion failed (%s)", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstream) true for any UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Retryable reports whether a user-initiated resubmission may succeed.
func (e *UpstreamError) Retryable() bool {
	return e.Kind != FailureCanceled
}

// classify wraps err from provider into an *UpstreamError. status is the
// HTTP status reported by the SDK, or 0 when unknown.
func classify(provider string, err error, status int) *UpstreamError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	kind := FailureProvider
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.Is(err, context.Canceled):
		kind = FailureCanceled
	case status == http.StatusTooManyRequests:
		kind = FailureRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = FailureTimeout
	}
	return &UpstreamError{Provider: provider, Kind: kind, Err: err}
}

// emptyResponse reports a provider reply that carried no choices or
// content blocks at all. An empty text block is a valid (silent) answer.
func emptyResponse(provider string) *UpstreamError {
	return &UpstreamError{Provider: provider, Kind: FailureEmpty, Err: errors.New("no text in response")}
}

// AsUpstream classifies err as an upstream failure of provider. Errors that
// already are *UpstreamError pass through unchanged.
func AsUpstream(provider string, err error) *UpstreamError {
	return classify(provider, err, 0)
}
