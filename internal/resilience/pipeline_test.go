package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErrors "product-catalog/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy() Policy {
	return Policy{
		Name:                "getProduct",
		Timeout:             time.Second,
		MaxRetries:          3,
		BulkheadCapacity:    5,
		BreakerThreshold:    4,
		BreakerFailureRatio: 0.5,
		BreakerOpenDelay:    5 * time.Second,
	}
}

func newTestPipeline(t *testing.T, policy Policy, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	p, err := New(policy, opts...)
	require.NoError(t, err)
	return p
}

func fallbackCause(_ context.Context, cause error) string {
	return "fallback: " + cause.Error()
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, testPolicy().Validate())

	p := testPolicy()
	p.BulkheadCapacity = 0
	assert.Error(t, p.Validate())

	p = testPolicy()
	p.Timeout = 0
	assert.Error(t, p.Validate())

	_, err := New(Policy{Name: "broken"})
	assert.Error(t, err)
}

func TestPolicyMerge(t *testing.T) {
	base := NewPolicy("getProducts", 5*time.Second, 3, 10)

	t.Run("Should keep base values for unset fields", func(t *testing.T) {
		timeout, bulkhead := time.Second, 2

		merged := base.Merge(PolicyOverride{Timeout: &timeout, BulkheadCapacity: &bulkhead})

		assert.Equal(t, time.Second, merged.Timeout)
		assert.Equal(t, 2, merged.BulkheadCapacity)
		assert.Equal(t, 3, merged.MaxRetries)
		assert.Equal(t, DefaultBreakerThreshold, merged.BreakerThreshold)
	})

	t.Run("Should allow retries to be turned off", func(t *testing.T) {
		retries := 0

		merged := base.Merge(PolicyOverride{MaxRetries: &retries})

		assert.Equal(t, 0, merged.MaxRetries)
		assert.Equal(t, 1, merged.MaxAttempts())
		assert.NoError(t, merged.Validate())
	})

	t.Run("Should surface an explicit invalid value to validation", func(t *testing.T) {
		bulkhead := 0

		merged := base.Merge(PolicyOverride{BulkheadCapacity: &bulkhead})

		assert.Error(t, merged.Validate())
	})
}

func TestExecute(t *testing.T) {
	t.Run("Should return the value of a successful attempt", func(t *testing.T) {
		p := newTestPipeline(t, testPolicy())

		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			return "ok", nil
		}, fallbackCause)

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("Should make MaxRetries+1 attempts then fall back", func(t *testing.T) {
		policy := testPolicy()
		policy.BreakerThreshold = 10
		p := newTestPipeline(t, policy)
		var calls atomic.Int32

		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			calls.Add(1)
			return "", appErrors.Backend("store unreachable", nil)
		}, fallbackCause)

		require.NoError(t, err)
		assert.Equal(t, int32(4), calls.Load())
		assert.Contains(t, got, "fallback:")
		assert.Contains(t, got, "store unreachable")
	})

	t.Run("Should stop retrying once an attempt succeeds", func(t *testing.T) {
		p := newTestPipeline(t, testPolicy())
		var calls atomic.Int32

		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			if calls.Add(1) < 3 {
				return "", errors.New("transient")
			}
			return "third time", nil
		}, fallbackCause)

		require.NoError(t, err)
		assert.Equal(t, "third time", got)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Should return not found without retry or fallback", func(t *testing.T) {
		p := newTestPipeline(t, testPolicy())
		var calls, fallbacks atomic.Int32

		_, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			calls.Add(1)
			return "", appErrors.NotFound("product p1 not found")
		}, func(context.Context, error) string {
			fallbacks.Add(1)
			return ""
		})

		assert.True(t, appErrors.IsNotFound(err))
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, int32(0), fallbacks.Load())
		assert.Equal(t, StateClosed, p.Breaker().State())
	})

	t.Run("Should not count not found outcomes as breaker failures", func(t *testing.T) {
		p := newTestPipeline(t, testPolicy())

		for i := 0; i < 10; i++ {
			_, _ = Execute(context.Background(), p, func(context.Context) (string, error) {
				return "", appErrors.NotFound("missing")
			}, fallbackCause)
		}

		assert.Equal(t, StateClosed, p.Breaker().State())
	})

	t.Run("Should open after four failures and reject the fifth call without invoking it", func(t *testing.T) {
		policy := testPolicy()
		policy.MaxRetries = 0
		p := newTestPipeline(t, policy)
		var calls atomic.Int32
		failing := func(context.Context) (string, error) {
			calls.Add(1)
			return "", appErrors.Backend("throttled", nil)
		}

		for i := 0; i < 4; i++ {
			_, err := Execute(context.Background(), p, failing, fallbackCause)
			require.NoError(t, err)
		}
		require.Equal(t, StateOpen, p.Breaker().State())

		var cause error
		_, err := Execute(context.Background(), p, failing, func(_ context.Context, c error) string {
			cause = c
			return "degraded"
		})

		require.NoError(t, err)
		assert.Equal(t, int32(4), calls.Load())
		assert.ErrorIs(t, cause, ErrCircuitOpen)
	})

	t.Run("Should stop the retry loop when an attempt trips the breaker", func(t *testing.T) {
		policy := testPolicy()
		policy.MaxRetries = 10
		p := newTestPipeline(t, policy)
		var calls atomic.Int32

		_, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			calls.Add(1)
			return "", appErrors.Backend("down", nil)
		}, fallbackCause)

		require.NoError(t, err)
		assert.Equal(t, int32(4), calls.Load())
		assert.Equal(t, StateOpen, p.Breaker().State())
	})

	t.Run("Should close after a successful half-open trial", func(t *testing.T) {
		clock := newFakeClock()
		policy := testPolicy()
		policy.MaxRetries = 0
		p := newTestPipeline(t, policy, WithClock(clock.Now))
		for i := 0; i < 4; i++ {
			_, _ = Execute(context.Background(), p, func(context.Context) (string, error) {
				return "", appErrors.Backend("down", nil)
			}, fallbackCause)
		}
		require.Equal(t, StateOpen, p.Breaker().State())

		clock.Advance(policy.BreakerOpenDelay)
		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			return "recovered", nil
		}, fallbackCause)

		require.NoError(t, err)
		assert.Equal(t, "recovered", got)
		assert.Equal(t, StateClosed, p.Breaker().State())
	})

	t.Run("Should time out a slow attempt and retry it", func(t *testing.T) {
		policy := testPolicy()
		policy.Timeout = 20 * time.Millisecond
		policy.MaxRetries = 1
		p := newTestPipeline(t, policy)
		var calls atomic.Int32
		var cause error

		_, err := Execute(context.Background(), p, func(ctx context.Context) (string, error) {
			calls.Add(1)
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		}, func(_ context.Context, c error) string {
			cause = c
			return ""
		})

		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.ErrorIs(t, cause, ErrAttemptTimeout)
		assert.Equal(t, appErrors.ErrorTypeTimeout, appErrors.TypeOf(cause))
	})

	t.Run("Should reject a call above bulkhead capacity without invoking it", func(t *testing.T) {
		p := newTestPipeline(t, testPolicy())
		release := make(chan struct{})
		started := make(chan struct{}, 5)
		var calls atomic.Int32

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = Execute(context.Background(), p, func(context.Context) (string, error) {
					calls.Add(1)
					started <- struct{}{}
					<-release
					return "ok", nil
				}, fallbackCause)
			}()
		}
		for i := 0; i < 5; i++ {
			<-started
		}
		assert.Equal(t, 5, p.Bulkhead().InFlight())

		var cause error
		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			calls.Add(1)
			return "should not run", nil
		}, func(_ context.Context, c error) string {
			cause = c
			return "busy"
		})

		close(release)
		wg.Wait()

		require.NoError(t, err)
		assert.Equal(t, "busy", got)
		assert.ErrorIs(t, cause, ErrBulkheadFull)
		assert.Equal(t, int32(5), calls.Load())
		assert.Equal(t, 0, p.Bulkhead().InFlight())
	})

	t.Run("Should turn a panic into a backend failure", func(t *testing.T) {
		policy := testPolicy()
		policy.MaxRetries = 0
		p := newTestPipeline(t, policy)

		got, err := Execute(context.Background(), p, func(context.Context) (string, error) {
			panic("boom")
		}, fallbackCause)

		require.NoError(t, err)
		assert.Contains(t, got, "boom")
	})

	t.Run("Should return the zero value when no fallback is given", func(t *testing.T) {
		policy := testPolicy()
		policy.MaxRetries = 0
		p := newTestPipeline(t, policy)

		got, err := Execute[int](context.Background(), p, func(context.Context) (int, error) {
			return 7, errors.New("failed")
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, 0, got)
	})
}

type recordingObserver struct {
	mu       sync.Mutex
	results  []string
	rejected []string
	states   []string
}

func (o *recordingObserver) AttemptFinished(string, string, time.Duration) {}
func (o *recordingObserver) InFlightChanged(string, int)                   {}

func (o *recordingObserver) CallFinished(_, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) Rejected(_, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, reason)
}

func (o *recordingObserver) BreakerStateChanged(_, state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func TestExecuteObserver(t *testing.T) {
	obs := &recordingObserver{}
	policy := testPolicy()
	policy.MaxRetries = 0
	p := newTestPipeline(t, policy, WithObserver(obs))

	for i := 0; i < 5; i++ {
		_, _ = Execute(context.Background(), p, func(context.Context) (string, error) {
			return "", appErrors.Backend("down", nil)
		}, fallbackCause)
	}

	assert.Equal(t, []string{"fallback", "fallback", "fallback", "fallback", "fallback"}, obs.results)
	assert.Equal(t, []string{"circuit_open"}, obs.rejected)
	assert.Equal(t, []string{"CLOSED", "OPEN"}, obs.states)
}
