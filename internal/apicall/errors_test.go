package apicall

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyByStatusCode(t *testing.T) {
	cases := []struct {
		code      int
		wantType  ErrorType
		retryable bool
	}{
		{429, ErrRateLimit, true},
		{401, ErrAuth, false},
		{403, ErrAuth, false},
		{400, ErrBadRequest, false},
		{404, ErrNotFound, false},
		{500, ErrServer, true},
		{502, ErrServer, true},
		{503, ErrServer, true},
	}
	for _, tc := range cases {
		ce := Classify(&StatusError{Code: tc.code})
		assert.Equal(t, tc.wantType, ce.Type, "status %d", tc.code)
		assert.Equal(t, tc.retryable, ce.Retryable, "status %d", tc.code)
		assert.Equal(t, tc.code, ce.StatusCode)
	}
}

func TestClassifyByMessage(t *testing.T) {
	cases := []struct {
		msg       string
		wantType  ErrorType
		retryable bool
	}{
		{"request timeout after 30s", ErrTimeout, true},
		{"ETIMEDOUT", ErrTimeout, true},
		{"network unreachable", ErrNetwork, true},
		{"getaddrinfo ENOTFOUND api.stripe.com", ErrNetwork, true},
		{"dial tcp: connection refused", ErrNetwork, true},
		{"insufficient credit balance", ErrQuotaExceeded, false},
		{"monthly quota reached", ErrQuotaExceeded, false},
		{"something else entirely", ErrUnknown, false},
	}
	for _, tc := range cases {
		ce := Classify(fmt.Errorf("%s", tc.msg))
		assert.Equal(t, tc.wantType, ce.Type, tc.msg)
		assert.Equal(t, tc.retryable, ce.Retryable, tc.msg)
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	ce := Classify(fmt.Errorf("calling provider: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout, ce.Type)
	assert.True(t, ce.Retryable)
}

func TestCallErrorUnwrap(t *testing.T) {
	cause := &StatusError{Code: 500, Msg: "internal"}
	ce := Classify(cause)
	var se *StatusError
	require.ErrorAs(t, ce, &se)
	assert.Equal(t, 500, se.Code)
}
