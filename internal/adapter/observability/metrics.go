package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_duration_seconds",
			Help:    "Scoring worker duration in seconds by dimension",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120},
		},
		[]string{"kind"},
	)
	WorkersCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workers_completed_total",
			Help: "Total number of scoring workers completed",
		},
		[]string{"kind"},
	)
	WorkersFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workers_failed_total",
			Help: "Total number of scoring workers failed",
		},
		[]string{"kind", "reason"},
	)

	ForksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forks_active",
			Help: "Number of forks currently active",
		},
	)
	ForksProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forks_provisioned_total",
			Help: "Total number of forks provisioned by strategy",
		},
		[]string{"strategy"},
	)
	ForkProvisionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fork_provision_failures_total",
			Help: "Total number of fork provisioning attempts where every strategy failed",
		},
	)

	// Score outcome distributions
	CompositeScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_composite",
			Help:    "Distribution of composite fitness scores (normalized fraction [0,1])",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	AgentsCompletedHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_agents_completed",
			Help:    "Distribution of workers completed per scoring request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkersCompletedTotal)
	prometheus.MustRegister(WorkersFailedTotal)
	prometheus.MustRegister(ForksActive)
	prometheus.MustRegister(ForksProvisionedTotal)
	prometheus.MustRegister(ForkProvisionFailuresTotal)
	prometheus.MustRegister(CompositeScoreHistogram)
	prometheus.MustRegister(AgentsCompletedHistogram)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveWorker records one worker outcome.
func ObserveWorker(kind string, dur time.Duration, err error) {
	WorkerDuration.WithLabelValues(kind).Observe(dur.Seconds())
	if err != nil {
		WorkersFailedTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	WorkersCompletedTotal.WithLabelValues(kind).Inc()
}

// ForkProvisioned records a successful provisioning and bumps the active gauge.
func ForkProvisioned(strategy string) {
	ForksProvisionedTotal.WithLabelValues(strategy).Inc()
	ForksActive.Inc()
}

// ForkReleased decrements the active fork gauge.
func ForkReleased() {
	ForksActive.Dec()
}

// ObserveComposite records the resulting scores from completed requests.
func ObserveComposite(composite float64, agentsCompleted int) {
	if composite >= 0 && composite <= 1 {
		CompositeScoreHistogram.Observe(composite)
	}
	AgentsCompletedHistogram.Observe(float64(agentsCompleted))
}
