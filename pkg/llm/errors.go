package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Provider errors are normalised into the family below. generate.Classify
// turns them into user-facing failures: RateLimitError becomes a quota
// failure, ContentFilterError a blocked prompt, and any other member an
// "API Error" carrying Message.

// LLMError is the common payload of every provider error.
type LLMError struct {
	Code    int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

func (e *LLMError) details() *LLMError { return e }

// Details returns the LLMError carried by err, whichever error class wraps it.
func Details(err error) (*LLMError, bool) {
	var d interface{ details() *LLMError }
	if errors.As(err, &d) {
		return d.details(), true
	}
	return nil, false
}

// RateLimitError is returned when the provider rate-limits the request or the
// account is out of quota.
type RateLimitError struct{ LLMError }

// ServerError is returned on 5xx responses from the provider.
type ServerError struct{ LLMError }

// AuthError is returned on authentication/authorization failures.
type AuthError struct{ LLMError }

// ContextLengthError is returned when the request exceeds the model's context window.
type ContextLengthError struct{ LLMError }

// ContentFilterError is returned when the provider's safety filter rejects a
// prompt or image.
type ContentFilterError struct{ LLMError }

// Retryable returns true if the error is transient and the request may be retried.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// Blocked reports whether err is a safety-filter rejection. Retrying the same
// prompt will not help.
func Blocked(err error) bool {
	var cf *ContentFilterError
	return errors.As(err, &cf)
}

// WithRetry retries fn up to maxAttempts using exponential backoff with jitter.
// It respects context cancellation.
func WithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for i := range maxAttempts {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if i == maxAttempts-1 {
			break
		}
		// Exponential backoff: base 1s, max 30s, ±25% jitter
		base := time.Duration(1<<uint(i)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		jitter := time.Duration(rand.Float64() * 0.5 * float64(base))
		wait := base/4*3 + jitter
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", maxAttempts, lastErr)
}
