// Package health implements liveness and readiness reporting.
package health

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Status values.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Check is one readiness dependency.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates check results.
type Report struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Up reports whether every check passed.
func (r Report) Up() bool { return r.Status == StatusUp }

// Checker runs the readiness checks. Each check sits behind its own circuit
// breaker so a failing dependency is not probed on every request.
type Checker struct {
	checks  []guardedCheck
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

type guardedCheck struct {
	check   Check
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures the per-check breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings trips after three consecutive failures and probes again after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}
}

// NewChecker creates a checker. timeout bounds each check.
func NewChecker(timeout time.Duration, settings BreakerSettings, logger *zap.Logger, checks ...Check) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{timeout: timeout, logger: logger, now: time.Now}
	for _, check := range checks {
		c.checks = append(c.checks, guardedCheck{
			check:   check,
			breaker: newBreaker(check.Name(), settings, logger),
		})
	}
	return c
}

func newBreaker(name string, settings BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("health check breaker state changed",
				zap.String("check", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Liveness reports that the process is serving.
func (c *Checker) Liveness() Report {
	return Report{Status: StatusUp, Timestamp: c.now().UTC()}
}

// Readiness runs every check in order and reports DOWN if any fails.
func (c *Checker) Readiness(ctx context.Context) Report {
	report := Report{Status: StatusUp, Timestamp: c.now().UTC()}
	for _, gc := range c.checks {
		result := CheckResult{Name: gc.check.Name(), Status: StatusUp}
		_, err := gc.breaker.Execute(func() (interface{}, error) {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return nil, gc.check.Check(checkCtx)
		})
		if err != nil {
			result.Status = StatusDown
			result.Error = err.Error()
			report.Status = StatusDown
			c.logger.Warn("readiness check failed", zap.String("check", result.Name), zap.Error(err))
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}
