package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErrors "product-catalog/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Rejection and timeout causes handed to fallbacks.
var (
	ErrBulkheadFull   = errors.New("bulkhead capacity reached")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// Observer receives pipeline events. observability.Metrics implements it.
type Observer interface {
	AttemptFinished(operation, outcome string, duration time.Duration)
	CallFinished(operation, result string)
	Rejected(operation, reason string)
	InFlightChanged(operation string, inFlight int)
	BreakerStateChanged(operation, state string)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(string, string, time.Duration) {}
func (nopObserver) CallFinished(string, string)                   {}
func (nopObserver) Rejected(string, string)                       {}
func (nopObserver) InFlightChanged(string, int)                   {}
func (nopObserver) BreakerStateChanged(string, string)            {}

// Call results reported to the Observer.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultFallback = "fallback"
)

// Pipeline applies one Policy to every call made through Execute.
type Pipeline struct {
	policy   Policy
	bulkhead *Bulkhead
	breaker  *Breaker
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for breaker transitions and fallbacks.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the tracer used for the per-call span.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithObserver sets the metrics sink.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithClock replaces time.Now for the breaker's open delay.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New validates the policy and builds a pipeline with its own bulkhead and breaker.
func New(policy Policy, opts ...Option) (*Pipeline, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		policy:   policy,
		bulkhead: NewBulkhead(policy.BulkheadCapacity),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("product-catalog/resilience"),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("operation", policy.Name))
	p.breaker = NewBreaker(policy.BreakerThreshold, policy.BreakerFailureRatio, policy.BreakerOpenDelay, p.now, p.onStateChange)
	p.observer.BreakerStateChanged(policy.Name, StateClosed.String())
	return p, nil
}

// Policy returns the policy the pipeline was built with.
func (p *Pipeline) Policy() Policy { return p.policy }

// Breaker exposes the breaker for inspection.
func (p *Pipeline) Breaker() *Breaker { return p.breaker }

// Bulkhead exposes the bulkhead for inspection.
func (p *Pipeline) Bulkhead() *Bulkhead { return p.bulkhead }

func (p *Pipeline) onStateChange(from, to State) {
	p.logger.Warn("circuit breaker state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	p.observer.BreakerStateChanged(p.policy.Name, to.String())
}

// Execute runs op under the pipeline's policy.
//
// A successful attempt returns its value. An error that is not retryable (not
// found, validation, authorization) is returned as is, without a fallback.
// Bulkhead rejection, an open breaker and retry exhaustion return
// fallback(ctx, cause) with a nil error.
func Execute[T any](ctx context.Context, p *Pipeline, op func(context.Context) (T, error), fallback func(context.Context, error) T) (T, error) {
	name := p.policy.Name

	if !p.bulkhead.TryAcquire() {
		p.observer.Rejected(name, "bulkhead")
		return runFallback(ctx, p, fallback, ErrBulkheadFull), nil
	}
	p.observer.InFlightChanged(name, p.bulkhead.InFlight())
	defer func() {
		p.bulkhead.Release()
		p.observer.InFlightChanged(name, p.bulkhead.InFlight())
	}()

	ctx, span := p.tracer.Start(ctx, "resilience."+name, trace.WithAttributes(
		attribute.String("resilience.operation", name),
		attribute.Int("resilience.max_attempts", p.policy.MaxAttempts()),
	))
	defer span.End()

	var cause error
	for attempt := 1; attempt <= p.policy.MaxAttempts(); attempt++ {
		ticket, err := p.breaker.Allow()
		if err != nil {
			p.observer.Rejected(name, "circuit_open")
			cause = err
			break
		}

		start := time.Now()
		value, err := runAttempt(ctx, p.policy.Timeout, op)
		outcome := classify(ctx, err)
		p.breaker.Record(ticket, outcome)
		p.observer.AttemptFinished(name, outcome.String(), time.Since(start))
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("outcome", outcome.String()),
		))

		if err == nil {
			p.observer.CallFinished(name, ResultSuccess)
			span.SetStatus(codes.Ok, "")
			return value, nil
		}
		cause = err

		if ctx.Err() != nil {
			break
		}
		if !appErrors.IsRetryable(err) {
			p.observer.CallFinished(name, ResultError)
			span.SetAttributes(attribute.String("error.type", string(appErrors.TypeOf(err))))
			return value, err
		}
		p.logger.Debug("attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	return runFallback(ctx, p, fallback, cause), nil
}

func runFallback[T any](ctx context.Context, p *Pipeline, fallback func(context.Context, error) T, cause error) T {
	p.observer.CallFinished(p.policy.Name, ResultFallback)
	p.logger.Warn("returning fallback", zap.Error(cause))
	if fallback == nil {
		var zero T
		return zero
	}
	return fallback(ctx, cause)
}

// runAttempt runs op in its own goroutine and stops waiting when the attempt
// deadline expires. A late result is discarded.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: appErrors.Backend(fmt.Sprintf("operation panicked: %v", r), nil)}
			}
		}()
		value, err := op(attemptCtx)
		done <- result{value: value, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, appErrors.Timeout(fmt.Sprintf("attempt exceeded %s", timeout), ErrAttemptTimeout)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, appErrors.Timeout(fmt.Sprintf("attempt exceeded %s", timeout), ErrAttemptTimeout)
	}
}

// classify maps an attempt error to what it says about the dependency.
func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case ctx.Err() != nil:
		return OutcomeIgnored
	case appErrors.IsRetryable(err):
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}
