package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var (
	once                       sync.Once
	metricsRouter              *chi.Mux
	marketCreatedCounter       prometheus.Counter
	sagaFailureCounter         prometheus.Counter
	stakeCounter               *prometheus.CounterVec
	distributionBatchHistogram prometheus.Histogram
	pollerDurationHistogram    *prometheus.HistogramVec
	activeMarketsGauge         prometheus.Gauge
	dbLatency                  *prometheus.HistogramVec
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics initializes and register the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

	marketCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_created_count",
			Help: "The total number of markets registered by the factory",
		},
	)

	sagaFailureCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioning_saga_failure_count",
			Help: "The total number of provisioning sagas that failed midway",
		},
	)

	stakeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_count",
			Help: "The total number of stakes placed, split by side",
		},
		[]string{"side"},
	)

	distributionBatchHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "distribution_batch_size",
			Help:    "Histogram of stakers processed per distribution call.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	activeMarketsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_markets_count",
			Help: "Number of markets still accepting stakes",
		},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)

	prometheus.MustRegister(
		marketCreatedCounter,
		sagaFailureCounter,
		stakeCounter,
		distributionBatchHistogram,
		pollerDurationHistogram,
		activeMarketsGauge,
		dbLatency,
	)
}

func IncMarketCreated() {
	marketCreatedCounter.Inc()
}

func IncSagaFailure() {
	sagaFailureCounter.Inc()
}

func IncStake(side string) {
	stakeCounter.WithLabelValues(side).Inc()
}

func RecordDistributionBatch(processed int) {
	distributionBatchHistogram.Observe(float64(processed))
}

func RecordActiveMarketsCount(count int) {
	activeMarketsGauge.Set(float64(count))
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	status := Success
	if failure {
		status = Error
	}

	dbLatency.WithLabelValues(method, status.String()).Observe(d.Seconds())
}
