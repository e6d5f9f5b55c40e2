package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "statements_queued",
			Help: "Statements currently queued behind a top-up",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM owner_statements WHERE payout_status = 'queued'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "statements_failed",
			Help: "Statements currently in payout status failed",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM owner_statements WHERE payout_status = 'failed'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
