package observability

import (
	"net/http"
	"time"

	"product-catalog/internal/resilience"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is the metrics namespace and the tracing service name.
const ServiceName = "product_catalog"

var breakerStateValue = map[string]float64{
	resilience.StateClosed.String():   0,
	resilience.StateOpen.String():     1,
	resilience.StateHalfOpen.String(): 2,
}

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Resilience metrics
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Calls           *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	InFlight        *prometheus.GaugeVec
	BreakerState    *prometheus.GaugeVec

	// Business metrics
	ProductsAdded   prometheus.Counter
	ProductsDeleted prometheus.Counter
	RatingsUpdated  prometheus.Counter
	ListResultSize  prometheus.Histogram
}

var _ resilience.Observer = (*Collector)(nil)

// NewCollector creates a collector backed by its own registry, so several
// collectors can coexist in one process (tests, Lambda warm starts).
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resilience_attempts_total",
				Help:      "Store call attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resilience_attempt_duration_seconds",
				Help:      "Duration of a single store call attempt",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resilience_calls_total",
				Help:      "Protected calls by operation and result (success, error, fallback)",
			},
			[]string{"operation", "result"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resilience_rejections_total",
				Help:      "Calls rejected by a full bulkhead or an open breaker",
			},
			[]string{"operation", "reason"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resilience_in_flight",
				Help:      "Concurrent calls admitted by the bulkhead",
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resilience_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"operation"},
		),
		ProductsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_added_total",
			Help:      "Total number of products created or replaced",
		}),
		ProductsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_deleted_total",
			Help:      "Total number of products deleted",
		}),
		RatingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_updated_total",
			Help:      "Total number of rating updates",
		}),
		ListResultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_matched_products",
			Help:      "Number of products matched by a list query before pagination",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Attempts,
		c.AttemptDuration,
		c.Calls,
		c.Rejections,
		c.InFlight,
		c.BreakerState,
		c.ProductsAdded,
		c.ProductsDeleted,
		c.RatingsUpdated,
		c.ListResultSize,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// AttemptFinished implements resilience.Observer.
func (c *Collector) AttemptFinished(operation, outcome string, duration time.Duration) {
	c.Attempts.WithLabelValues(operation, outcome).Inc()
	c.AttemptDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// CallFinished implements resilience.Observer.
func (c *Collector) CallFinished(operation, result string) {
	c.Calls.WithLabelValues(operation, result).Inc()
}

// Rejected implements resilience.Observer.
func (c *Collector) Rejected(operation, reason string) {
	c.Rejections.WithLabelValues(operation, reason).Inc()
}

// InFlightChanged implements resilience.Observer.
func (c *Collector) InFlightChanged(operation string, inFlight int) {
	c.InFlight.WithLabelValues(operation).Set(float64(inFlight))
}

// BreakerStateChanged implements resilience.Observer.
func (c *Collector) BreakerStateChanged(operation, state string) {
	c.BreakerState.WithLabelValues(operation).Set(breakerStateValue[state])
}

// ProductAdded counts a successful create or replace.
func (c *Collector) ProductAdded() { c.ProductsAdded.Inc() }

// ProductDeleted counts a successful delete.
func (c *Collector) ProductDeleted() { c.ProductsDeleted.Inc() }

// RatingUpdated counts a successful rating update.
func (c *Collector) RatingUpdated() { c.RatingsUpdated.Inc() }

// ListMatched records how many products a list query matched.
func (c *Collector) ListMatched(n int) { c.ListResultSize.Observe(float64(n)) }
