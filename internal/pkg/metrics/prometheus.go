package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetfix"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Remediation metrics
	actionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "actions_created_total",
			Help:      "Remediation actions accepted into the queue",
		},
		[]string{"action_type", "approval"},
	)

	actionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "create_refusals_total",
			Help:      "Create requests refused before persisting",
		},
		[]string{"reason"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "transitions_total",
			Help:      "Applied action status transitions",
		},
		[]string{"from", "to"},
	)

	staleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "stale_transitions_total",
			Help:      "Transitions refused because the expected status had changed",
		},
		[]string{"to"},
	)

	// Heartbeat metrics
	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "checkins_total",
			Help:      "Host check-ins processed",
		},
		[]string{"dispatched"},
	)

	commandsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "commands_dispatched_total",
			Help:      "Commands handed to hosts",
		},
		[]string{"action_type"},
	)

	resultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "results_total",
			Help:      "Command results reported by hosts",
		},
		[]string{"outcome", "applied"},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent selecting and claiming a command",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	// Watchdog metrics
	timeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchdog",
			Name:      "timeouts_total",
			Help:      "Executing actions failed by the timeout watchdog",
		},
		[]string{"action_type"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter",
		},
		[]string{"scope"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordActionCreated counts an accepted action. approval is "auto" or "manual".
func RecordActionCreated(actionType, approval string) {
	actionsCreatedTotal.WithLabelValues(actionType, approval).Inc()
}

// RecordCreateRefused counts a create refused with a validation or conflict reason.
func RecordCreateRefused(reason string) {
	actionsRejectedTotal.WithLabelValues(reason).Inc()
}

func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordStaleTransition(to string) {
	staleTransitionsTotal.WithLabelValues(to).Inc()
}

// RecordCheckIn counts a processed check-in and whether it carried a command back.
func RecordCheckIn(dispatched bool) {
	checkInsTotal.WithLabelValues(strconv.FormatBool(dispatched)).Inc()
}

func RecordDispatch(actionType string, duration time.Duration) {
	commandsDispatchedTotal.WithLabelValues(actionType).Inc()
	dispatchDuration.Observe(duration.Seconds())
}

// RecordResult counts a reported result; applied is false for stale or duplicate reports.
func RecordResult(outcome string, applied bool) {
	resultsTotal.WithLabelValues(outcome, strconv.FormatBool(applied)).Inc()
}

func RecordNotification(channel, status string) {
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

func RecordTimeout(actionType string) {
	timeoutsTotal.WithLabelValues(actionType).Inc()
}

func RecordRateLimited(scope string) {
	rateLimitedTotal.WithLabelValues(scope).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
