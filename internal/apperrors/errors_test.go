package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DerivesRetryableFromKind(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		retryable bool
	}{
		{"rate limited is retryable", KindRateLimited, true},
		{"network error is retryable", KindNetworkError, true},
		{"timeout is retryable", KindTimeout, true},
		{"rejected is not retryable", KindRejected, false},
		{"invalid input is not retryable", KindInvalidInput, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, "broker1", "boom")
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestError_MessageFormat(t *testing.T) {
	withBroker := New(KindRejected, "saxoeu", "insufficient margin")
	assert.Equal(t, "Rejected[saxoeu]: insufficient margin", withBroker.Error())

	noBroker := New(KindInvalidInput, "", "bad quantity")
	assert.Equal(t, "InvalidInput: bad quantity", noBroker.Error())
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	wrapped := Wrap(KindNetworkError, "usequity", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsRetryable(wrapped))
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, "broker1", nil))
}

func TestNotSupported(t *testing.T) {
	err := NotSupported("usequity", "GetOAuthURL")
	assert.Equal(t, KindNotSupported, KindOf(err))
	assert.Contains(t, err.Error(), "GetOAuthURL is not supported")
}

func TestKindOf_NonCanonicalError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestIsRetryable_NonCanonicalError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestKindOf_UnwrapsWrappedCanonicalError(t *testing.T) {
	inner := New(KindTokenExpired, "saxoeu", "token expired")
	outer := fmt.Errorf("refresh failed: %w", inner)
	assert.Equal(t, KindTokenExpired, KindOf(outer))
}
