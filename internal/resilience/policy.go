// Package resilience wraps a single call to an unreliable dependency in a bulkhead,
// a circuit breaker, a bounded retry loop and a per-attempt timeout, and converts
// exhaustion or rejection into a caller supplied fallback value.
//
// Each Pipeline owns its own bulkhead and breaker. Pipelines are safe for
// concurrent use and are meant to be shared by every invocation of the operation
// they protect.
package resilience

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default breaker settings shared by every catalog operation.
const (
	DefaultBreakerThreshold    = 4
	DefaultBreakerFailureRatio = 0.5
	DefaultBreakerOpenDelay    = 5 * time.Second
)

var validate = validator.New()

// Policy is the resilience configuration of one operation. It is a value: once a
// Pipeline is built from it, later changes to the Policy have no effect.
type Policy struct {
	Name             string        `yaml:"name" validate:"required"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries       int           `yaml:"maxRetries" validate:"gte=0,lte=10"`
	BulkheadCapacity int           `yaml:"bulkhead" validate:"gte=1"`

	// BreakerThreshold is both the rolling window size and the minimum number of
	// samples before the failure ratio is evaluated.
	BreakerThreshold    int           `yaml:"breakerThreshold" validate:"gte=1"`
	BreakerFailureRatio float64       `yaml:"breakerFailureRatio" validate:"gt=0,lte=1"`
	BreakerOpenDelay    time.Duration `yaml:"breakerOpenDelay" validate:"gt=0"`
}

// NewPolicy returns a policy with the default breaker settings.
func NewPolicy(name string, timeout time.Duration, maxRetries, bulkhead int) Policy {
	return Policy{
		Name:                name,
		Timeout:             timeout,
		MaxRetries:          maxRetries,
		BulkheadCapacity:    bulkhead,
		BreakerThreshold:    DefaultBreakerThreshold,
		BreakerFailureRatio: DefaultBreakerFailureRatio,
		BreakerOpenDelay:    DefaultBreakerOpenDelay,
	}
}

// Validate reports the first invalid field.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid policy %q: %w", p.Name, err)
	}
	return nil
}

// MaxAttempts is the total number of attempts, the first call included.
func (p Policy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// PolicyOverride is a partial policy read from configuration. Nil fields keep
// the base value, so an explicit zero (maxRetries: 0) is distinguishable from
// an absent key.
type PolicyOverride struct {
	Timeout             *time.Duration `yaml:"timeout"`
	MaxRetries          *int           `yaml:"maxRetries"`
	BulkheadCapacity    *int           `yaml:"bulkhead"`
	BreakerThreshold    *int           `yaml:"breakerThreshold"`
	BreakerFailureRatio *float64       `yaml:"breakerFailureRatio"`
	BreakerOpenDelay    *time.Duration `yaml:"breakerOpenDelay"`
}

// Merge overlays the fields set in override onto p. The result is not
// validated; call Validate on it.
func (p Policy) Merge(override PolicyOverride) Policy {
	if override.Timeout != nil {
		p.Timeout = *override.Timeout
	}
	if override.MaxRetries != nil {
		p.MaxRetries = *override.MaxRetries
	}
	if override.BulkheadCapacity != nil {
		p.BulkheadCapacity = *override.BulkheadCapacity
	}
	if override.BreakerThreshold != nil {
		p.BreakerThreshold = *override.BreakerThreshold
	}
	if override.BreakerFailureRatio != nil {
		p.BreakerFailureRatio = *override.BreakerFailureRatio
	}
	if override.BreakerOpenDelay != nil {
		p.BreakerOpenDelay = *override.BreakerOpenDelay
	}
	return p
}
