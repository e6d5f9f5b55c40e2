package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "payouts_"

	resultSuccess = "success"
	resultError   = "error"
)

// Result labels for operation outcomes.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	settleTotal   *prometheus.CounterVec
	settleLatency *prometheus.HistogramVec

	fundAndQueueTotal   *prometheus.CounterVec
	fundAndQueueLatency *prometheus.HistogramVec

	drainTotal   *prometheus.CounterVec
	drainLatency *prometheus.HistogramVec

	topUpsRequested *prometheus.CounterVec
	railErrors      *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	webhookEvents *prometheus.CounterVec
)

// Init registers payout metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		settleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settle_total",
				Help: "Total settlement attempts by result",
			},
			[]string{"result"},
		)
		settleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settle_latency_seconds",
				Help:    "Settlement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		fundAndQueueTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fund_and_queue_total",
				Help: "Total fund-and-queue batches by result",
			},
			[]string{"result"},
		)
		fundAndQueueLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fund_and_queue_latency_seconds",
				Help:    "Fund-and-queue latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		drainTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "queue_drain_total",
				Help: "Total queue drain runs by result",
			},
			[]string{"result"},
		)
		drainLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "queue_drain_latency_seconds",
				Help:    "Queue drain latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		topUpsRequested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "topups_requested_total",
				Help: "Total platform top-ups requested by currency",
			},
			[]string{"currency"},
		)
		railErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rail_errors_total",
				Help: "Total rail call failures by kind",
			},
			[]string{"kind"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		webhookEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rail_webhook_events_total",
				Help: "Total rail webhook events by type and disposition",
			},
			[]string{"type", "disposition"},
		)

		prometheus.MustRegister(
			settleTotal,
			settleLatency,
			fundAndQueueTotal,
			fundAndQueueLatency,
			drainTotal,
			drainLatency,
			topUpsRequested,
			railErrors,
			exportTotal,
			exportLatency,
			webhookEvents,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSettle records one settlement attempt.
func ObserveSettle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if settleTotal != nil {
		settleTotal.WithLabelValues(result).Inc()
	}
	if settleLatency != nil {
		settleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveFundAndQueue records one batch run.
func ObserveFundAndQueue(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if fundAndQueueTotal != nil {
		fundAndQueueTotal.WithLabelValues(result).Inc()
	}
	if fundAndQueueLatency != nil {
		fundAndQueueLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveDrain records one queue drain run.
func ObserveDrain(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if drainTotal != nil {
		drainTotal.WithLabelValues(result).Inc()
	}
	if drainLatency != nil {
		drainLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncTopUpRequested counts a requested platform top-up.
func IncTopUpRequested(currency string) {
	if currency == "" {
		currency = "unknown"
	}
	if topUpsRequested != nil {
		topUpsRequested.WithLabelValues(currency).Inc()
	}
}

// IncRailError counts a rail failure by kind.
func IncRailError(kind string) {
	if kind == "" {
		kind = "other"
	}
	if railErrors != nil {
		railErrors.WithLabelValues(kind).Inc()
	}
}

// ObserveExport records one statement export.
func ObserveExport(format, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// IncWebhookEvent counts a rail webhook event by disposition
// (processed, duplicate, ignored, invalid).
func IncWebhookEvent(eventType, disposition string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if webhookEvents != nil {
		webhookEvents.WithLabelValues(eventType, disposition).Inc()
	}
}
