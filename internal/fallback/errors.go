package fallback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/sony/gobreaker"
)

// ErrTierUnavailable marks a handler whose configuration is missing.
// Such handlers are skipped, never attempted.
var ErrTierUnavailable = errors.New("tier unavailable")

// Unconfigured reports a missing credential or endpoint.
func Unconfigured(what string) error {
	return fmt.Errorf("%w: %s not configured", ErrTierUnavailable, what)
}

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindCanceled    ErrorKind = "canceled"
	KindAuth        ErrorKind = "auth"
	KindQuota       ErrorKind = "quota"
	KindRejected    ErrorKind = "rejected"
	KindUnavailable ErrorKind = "unavailable"
	KindBadResponse ErrorKind = "bad_response"
	KindNetwork     ErrorKind = "network"
	KindBreakerOpen ErrorKind = "breaker_open"
	KindUnsupported ErrorKind = "unsupported"
	KindPanic       ErrorKind = "panic"
	KindOther       ErrorKind = "other"
)

// TierError is the failure of one attempted handler.
type TierError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *TierError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// Failf builds a TierError for provider with a formatted cause.
func Failf(kind ErrorKind, provider, format string, args ...any) error {
	return &TierError{Kind: kind, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// Classify maps any attempt error to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var te *TierError
	if errors.As(err, &te) {
		return te.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return KindBreakerOpen
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindOther
}
