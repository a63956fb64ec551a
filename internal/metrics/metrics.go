package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: how many requests were served straight from the response cache.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nkelo_cache_hits_total",
			Help: "Total number of responses served from the AI response cache.",
		},
	)

	// Counter: best-effort cache writes that failed.
	CacheWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nkelo_cache_write_failures_total",
			Help: "Total number of failed cache writes (best-effort, swallowed).",
		},
	)

	// Histogram: upstream generation latency in seconds, per action.
	GenerationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nkelo_generation_latency_seconds",
			Help:    "Latency of generateContent calls to the model provider in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"action"},
	)

	// Counter: XP reward increments, by outcome ("ok" or "error").
	XPRewardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nkelo_xp_rewards_total",
			Help: "Total number of XP increment attempts.",
		},
		[]string{"outcome"},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nkelo_gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheWriteFailuresTotal,
		GenerationLatencySeconds,
		XPRewardsTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
