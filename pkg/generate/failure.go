package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

// Reason is the coarse classification of a generation failure.
type Reason string

const (
	ReasonQuotaExceeded Reason = "quota_exceeded"
	ReasonServiceError  Reason = "service_error"
	ReasonBlocked       Reason = "blocked"
	ReasonUnknown       Reason = "unknown"
	// ReasonUnsupported marks kinds without a backing service.
	ReasonUnsupported Reason = "unsupported"
)

// QuotaMessage is shown when the service rejects a request for quota reasons.
const QuotaMessage = "API Quota Exceeded. You've made too many requests. Please check your plan and billing details, or try again later."

// Failure is a classified error from the generation service. Message is fit
// to show to a user.
type Failure struct {
	Reason  Reason
	Action  string // e.g. "generate image"
	Message string
	Cause   error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Cause }

// Classify wraps err as a Failure for the named action. A nil err yields nil
// and an existing Failure is returned unchanged.
func Classify(action string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	text := err.Error()
	var rl *llm.RateLimitError
	if errors.As(err, &rl) || strings.Contains(text, "RESOURCE_EXHAUSTED") || strings.Contains(text, "429") {
		return &Failure{Reason: ReasonQuotaExceeded, Action: action, Message: QuotaMessage, Cause: err}
	}

	if llm.Blocked(err) {
		d, _ := llm.Details(err)
		return &Failure{Reason: ReasonBlocked, Action: action, Message: "API Error: " + d.Message, Cause: err}
	}

	if msg := embeddedMessage(text); msg != "" {
		return &Failure{Reason: ReasonServiceError, Action: action, Message: "API Error: " + msg, Cause: err}
	}
	if d, ok := llm.Details(err); ok && d.Message != "" {
		return &Failure{Reason: ReasonServiceError, Action: action, Message: "API Error: " + d.Message, Cause: err}
	}

	return &Failure{
		Reason:  ReasonUnknown,
		Action:  action,
		Message: fmt.Sprintf("An error occurred while trying to %s: %s", action, text),
		Cause:   err,
	}
}

// Unsupported reports an action no service can perform.
func Unsupported(action string) *Failure {
	return &Failure{
		Reason:  ReasonUnsupported,
		Action:  action,
		Message: fmt.Sprintf("Cannot %s: no service is available for it.", action),
	}
}

// embeddedMessage extracts error.message from a JSON payload starting at the
// first '{' of text.
func embeddedMessage(text string) string {
	i := strings.IndexByte(text, '{')
	if i < 0 {
		return ""
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(text[i:]), &payload); err != nil {
		return ""
	}
	return payload.Error.Message
}
