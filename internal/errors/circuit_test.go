package errors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so reset timeouts need no sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("tika",
		WithMaxFailures(maxFailures),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
	)
	return cb, clock
}

var errTool = errors.New("exit status 1")

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errTool }), errTool)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errTool })
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(5)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clock.Advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(func() error { return errTool })

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(5)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errTool })
	}
	assert.Equal(t, 3, cb.Failures())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitExecute_ReturnsResult(t *testing.T) {
	cb, _ := newTestBreaker(1)

	text, err := CircuitExecute(cb, func() (string, error) { return "extracted", nil })
	require.NoError(t, err)
	assert.Equal(t, "extracted", text)

	_, err = CircuitExecute(cb, func() (string, error) { return "", errTool })
	assert.ErrorIs(t, err, errTool)

	_, err = CircuitExecute(cb, func() (string, error) { return "never", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitExecuteWithResult_UsesFallbackWhenOpen(t *testing.T) {
	cb, _ := newTestBreaker(1)
	_ = cb.Execute(func() error { return errTool })

	result, err := CircuitExecuteWithResult(cb,
		func() (string, error) { return "primary", nil },
		func() (string, error) { return "fallback", nil },
	)

	assert.NoError(t, err)
	assert.Equal(t, "fallback", result)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker("concurrent", WithMaxFailures(10), WithResetTimeout(time.Second))

	var wg sync.WaitGroup
	var done atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errTool
			})
			done.Add(1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(20), done.Load())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("aperture", WithMaxFailures(0))

	assert.Equal(t, "aperture", cb.Name())
	assert.Equal(t, 5, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
