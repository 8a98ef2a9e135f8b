package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.CurrentState())

	// Open breaker rejects without calling fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })
	require.NoError(t, cb.Execute(func() error { return nil }))

	// Two more failures stay under the threshold after the reset.
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestBreakerProbeClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.CurrentState())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	cb.Execute(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	require.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.CurrentState())
}

func TestBreakerReportsTransitions(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	var transitions []string
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	cb.Execute(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	cb.Execute(func() error { return nil })

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
