package fallback

import (
	"fmt"
	"strings"
	"time"
)

// Tier ranks a handler inside a chain.
type Tier int

const (
	TierNone Tier = iota
	TierPrimary
	TierSecondary
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// MarshalText renders the tier name in JSON payloads.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name written by MarshalText.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "primary":
		*t = TierPrimary
	case "secondary":
		*t = TierSecondary
	case "fallback":
		*t = TierFallback
	case "none", "":
		*t = TierNone
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// Outcome is the variant of a Result.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failure"
	}
}

// MarshalText renders the outcome name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FailureKind says why a Result is a Failure.
type FailureKind string

const (
	KindAllTiersExhausted FailureKind = "all_tiers_exhausted"
	KindInvalidRequest    FailureKind = "invalid_request"
	KindCallerCanceled    FailureKind = "canceled"
)

// UnavailableMessage is shown to users when a feature produced no result.
const UnavailableMessage = "feature unavailable, please retry or check configuration"

// CanceledMessage is shown when the caller gave up before any tier answered.
const CanceledMessage = "request canceled"

// AttemptStatus records what happened to one handler during a request.
type AttemptStatus string

const (
	StatusSkipped   AttemptStatus = "skipped"
	StatusFailed    AttemptStatus = "failed"
	StatusSucceeded AttemptStatus = "succeeded"
)

// Attempt is one entry of the per-request trace.
type Attempt struct {
	Tier     Tier          `json:"tier"`
	Provider string        `json:"provider"`
	Status   AttemptStatus `json:"status"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Result is the tagged union returned by every service call.
type Result[T any] struct {
	Outcome  Outcome     `json:"outcome"`
	Payload  T           `json:"payload"`
	Tier     Tier        `json:"tier"`
	Provider string      `json:"provider,omitempty"`
	Warning  string      `json:"warning,omitempty"`
	Kind     FailureKind `json:"kind,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Attempts []Attempt   `json:"attempts,omitempty"`
}

// OK reports whether the result carries a payload.
func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeDegraded
}

// Message returns the line a presentation layer should show next to the payload.
func (r Result[T]) Message() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return ""
	case OutcomeDegraded:
		return r.Warning
	}
	if r.Kind == KindInvalidRequest && r.Detail != "" {
		return r.Detail
	}
	if r.Kind == KindCallerCanceled {
		return CanceledMessage
	}
	return UnavailableMessage
}

// Invalid builds the Failure returned for requests that fail validation.
// No tier runs for such requests.
func Invalid[T any](format string, args ...any) Result[T] {
	return Result[T]{
		Outcome: OutcomeFailure,
		Tier:    TierNone,
		Kind:    KindInvalidRequest,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// Map converts the payload of a Result while keeping its provenance.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := Result[U]{
		Outcome:  r.Outcome,
		Tier:     r.Tier,
		Provider: r.Provider,
		Warning:  r.Warning,
		Kind:     r.Kind,
		Detail:   r.Detail,
		Attempts: r.Attempts,
	}
	if r.OK() {
		out.Payload = fn(r.Payload)
	}
	return out
}

// Reply is what a handler hands back on success. A non-empty Warning marks
// the payload as degraded even when no earlier tier failed.
type Reply[T any] struct {
	Value   T
	Warning string
}

// OK wraps a complete payload.
func OK[T any](v T) Reply[T] {
	return Reply[T]{Value: v}
}

// Warn wraps a usable but degraded payload.
func Warn[T any](v T, warning string) Reply[T] {
	return Reply[T]{Value: v, Warning: warning}
}

func joinWarnings(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
