package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "rate_limit error (code 429): slow down", FromStatus(429, "slow down").Error())
	assert.Equal(t, "not_image error: got text/html", New(ErrorTypeNotImage, "got text/html").Error())
	assert.Equal(t, "network error: dial: connection refused",
		Wrap(ErrorTypeNetwork, "dial", errors.New("connection refused")).Error())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromStatus(tt.code, "").Type, "status %d", tt.code)
	}
}

func TestTypeOfUnwrapsChains(t *testing.T) {
	inner := New(ErrorTypeTooSmall, "2048 bytes")
	wrapped := fmt.Errorf("reddit: %w", inner)

	assert.Equal(t, ErrorTypeTooSmall, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeTooSmall))
	assert.False(t, Is(nil, ErrorTypeTooSmall))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))

	cause := Wrap(ErrorTypeNetwork, "get", context.DeadlineExceeded)
	assert.ErrorIs(t, cause, context.DeadlineExceeded)
}

func TestRetryClassification(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeTooSmall))

	assert.True(t, IsRejection(ErrorTypeNotImage))
	assert.True(t, IsRejection(ErrorTypeLowRes))
	assert.False(t, IsRejection(ErrorTypeNetwork))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(404))
}
