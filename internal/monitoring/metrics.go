package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ledger metrics
	CoinsSpentTotal        prometheus.Counter
	CoinsEarnedTotal       prometheus.Counter
	LedgerTransactionsTotal *prometheus.CounterVec

	// Purchase metrics
	PurchasesTotal              *prometheus.CounterVec
	InsufficientCoinsRejections prometheus.Counter

	// Top-up metrics
	TopupsTotal  *prometheus.CounterVec
	TopupRevenue *prometheus.CounterVec

	// Event metrics
	EventsPublished      *prometheus.CounterVec
	EventPublishFailures *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Ledger metrics
		CoinsSpentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "coins_spent_total",
				Help: "Total coins debited from member wallets",
			},
		),
		CoinsEarnedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "coins_earned_total",
				Help: "Total coins credited to wallets (top-ups and creator earnings)",
			},
		),
		LedgerTransactionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Total coin ledger transactions",
			},
			[]string{"direction", "related_type"},
		),

		// Purchase metrics
		PurchasesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Total content purchases",
			},
			[]string{"content_type", "purchase_type"},
		),
		InsufficientCoinsRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "insufficient_coins_rejections_total",
				Help: "Total purchase attempts rejected for insufficient balance",
			},
		),

		// Top-up metrics
		TopupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topups_total",
				Help: "Total wallet top-ups",
			},
			[]string{"status"},
		),
		TopupRevenue: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_revenue_total",
				Help: "Total top-up revenue in currency units",
			},
			[]string{"currency"},
		),

		// Event metrics
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Total post-commit events published",
			},
			[]string{"channel"},
		),
		EventPublishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_publish_failures_total",
				Help: "Total event publish failures (never propagated to callers)",
			},
			[]string{"channel"},
		),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordLedgerTransaction records a coin ledger transaction
func RecordLedgerTransaction(direction, relatedType string, amount int64) {
	m := Get()
	m.LedgerTransactionsTotal.WithLabelValues(direction, relatedType).Inc()
	if direction == "spend" {
		m.CoinsSpentTotal.Add(float64(amount))
	} else {
		m.CoinsEarnedTotal.Add(float64(amount))
	}
}

// RecordPurchase records a completed content purchase
func RecordPurchase(contentType, purchaseType string) {
	Get().PurchasesTotal.WithLabelValues(contentType, purchaseType).Inc()
}

// RecordInsufficientCoins records a rejected purchase attempt
func RecordInsufficientCoins() {
	Get().InsufficientCoinsRejections.Inc()
}

// RecordTopup records a wallet top-up
func RecordTopup(status string) {
	Get().TopupsTotal.WithLabelValues(status).Inc()
}

// RecordTopupRevenue records top-up revenue
func RecordTopupRevenue(currency string, amount float64) {
	Get().TopupRevenue.WithLabelValues(currency).Add(amount)
}

// RecordEventPublished records a published event
func RecordEventPublished(channel string) {
	Get().EventsPublished.WithLabelValues(channel).Inc()
}

// RecordEventPublishFailure records a failed event publish
func RecordEventPublishFailure(channel string) {
	Get().EventPublishFailures.WithLabelValues(channel).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}
