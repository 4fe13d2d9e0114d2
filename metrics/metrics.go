// Package metrics exports workflow and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

const namespace = "leave"

// Collector implements leave.Metrics and instruments the HTTP router.
// Each Collector owns its metric vectors, so tests can build one per
// registry.
type Collector struct {
	transitions    *prometheus.CounterVec
	failures       *prometheus.CounterVec
	balanceChanges *prometheus.CounterVec
	balanceUnits   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the leave metrics on reg. When reg is also a
// prometheus.Gatherer (a *prometheus.Registry is), Handler serves it;
// otherwise Handler serves the default gatherer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Successful leave request transitions.",
		}, []string{"action", "from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_failures_total",
			Help:      "Rejected leave request transitions by error kind.",
		}, []string{"action", "kind"}),
		balanceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_adjustments_total",
			Help:      "Balance ledger mutations by operation.",
		}, []string{"operation"}),
		balanceUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_adjusted_units_total",
			Help:      "Units moved by reserve and restore operations.",
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: prometheus.DefaultGatherer,
	}

	for _, col := range []prometheus.Collector{
		c.transitions, c.failures, c.balanceChanges, c.balanceUnits, c.httpRequests, c.httpDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	return c, nil
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Collector) TransitionSucceeded(action generic.Action, from, to generic.RequestStatus) {
	if from == "" {
		from = "NONE"
	}
	c.transitions.WithLabelValues(string(action), string(from), string(to)).Inc()
}

func (c *Collector) TransitionFailed(action generic.Action, kind generic.Kind) {
	c.failures.WithLabelValues(string(action), string(kind)).Inc()
}

func (c *Collector) BalanceAdjusted(operation string, amount decimal.Decimal) {
	c.balanceChanges.WithLabelValues(operation).Inc()
	if operation == "reserve" || operation == "restore" {
		c.balanceUnits.WithLabelValues(operation).Add(amount.InexactFloat64())
	}
}

// Handler serves the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern.
// The pattern keeps label cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
