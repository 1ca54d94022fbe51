package apicall

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType classifies an outbound call failure.
type ErrorType string

const (
	ErrRateLimit     ErrorType = "rate_limit"
	ErrAuth          ErrorType = "auth_error"
	ErrBadRequest    ErrorType = "bad_request"
	ErrNotFound      ErrorType = "not_found"
	ErrServer        ErrorType = "server_error"
	ErrTimeout       ErrorType = "timeout"
	ErrNetwork       ErrorType = "network_error"
	ErrQuotaExceeded ErrorType = "quota_exceeded"
	ErrUnknown       ErrorType = "unknown"
)

// StatusError carries an HTTP status from a provider response.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("status %d", e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

// CallError is the classified outcome of a failed call. It wraps the original
// error so callers can still unwrap provider-specific types.
type CallError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	cause      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *CallError) Unwrap() error { return e.cause }

// Classify maps err to a CallError: HTTP status first, then message and code
// substrings when no actionable status is present.
func Classify(err error) *CallError {
	ce := &CallError{Type: ErrUnknown, Message: err.Error(), cause: err}

	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		ce.StatusCode = coder.StatusCode()
	}

	switch {
	case ce.StatusCode == 429:
		ce.Type = ErrRateLimit
	case ce.StatusCode == 401 || ce.StatusCode == 403:
		ce.Type = ErrAuth
	case ce.StatusCode == 400:
		ce.Type = ErrBadRequest
	case ce.StatusCode == 404:
		ce.Type = ErrNotFound
	case ce.StatusCode >= 500:
		ce.Type = ErrServer
	default:
		ce.Type = classifyMessage(err)
	}

	ce.Retryable = retryable(ce)
	return ce
}

func classifyMessage(err error) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "etimedout"):
		return ErrTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "enotfound") ||
		strings.Contains(msg, "connection refused"):
		return ErrNetwork
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "quota"):
		return ErrQuotaExceeded
	}
	return ErrUnknown
}

// retryable applies the retry policy: auth, bad request, not found and quota
// failures never retry; rate limits, timeouts, network and server errors do,
// as does any response with a 429/5xx status even when classification fell
// through to unknown.
func retryable(ce *CallError) bool {
	switch ce.Type {
	case ErrAuth, ErrBadRequest, ErrNotFound, ErrQuotaExceeded:
		return false
	case ErrRateLimit, ErrTimeout, ErrNetwork, ErrServer:
		return true
	}
	switch ce.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
