package utils

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTicketID(t *testing.T) {
	id, err := GenerateTicketID(8)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), id)

	other, err := GenerateTicketID(8)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestKeyHash(t *testing.T) {
	hash, err := GenerateKeyHash([]byte("scanner-key-1"))
	require.NoError(t, err)

	assert.True(t, CompareKeyHash([]byte(hash), []byte("scanner-key-1")))
	assert.False(t, CompareKeyHash([]byte(hash), []byte("scanner-key-2")))
	assert.False(t, CompareKeyHash([]byte("not a bcrypt hash"), []byte("scanner-key-1")))
}

func TestCircuitBreaker_TripsAfterRepeatedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	downstream := errors.New("publish failed")

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func() error { return downstream })
		assert.ErrorIs(t, err, downstream)
	}

	assert.Equal(t, StateOpen, cb.State())

	// While open, requests are rejected without touching the downstream.
	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_MixedFailuresBelowRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")
	downstream := errors.New("publish failed")

	// 2 failures out of 10 stays under the trip ratio.
	for i := 0; i < 10; i++ {
		fn := func() error { return nil }
		if i%5 == 0 {
			fn = func() error { return downstream }
		}
		_ = cb.Execute(context.Background(), fn)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CanceledContext(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error {
		t.Fatal("request ran despite canceled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
