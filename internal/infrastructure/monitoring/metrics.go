package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_engine_db_query_duration_seconds",
			Help:    "Histogram of database query latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_name", "status"},
	)

	eligibilityDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_engine_eligibility_decisions_total",
			Help: "Total number of eligibility decisions, by outcome.",
		},
		[]string{"outcome"},
	)

	loansCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_engine_loans_created_total",
			Help: "Total number of loans persisted to the ledger.",
		},
	)

	customersRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_engine_customers_registered_total",
			Help: "Total number of customers created via registration.",
		},
	)

	ingestionRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_engine_ingestion_rows_total",
			Help: "Total number of ingested rows, by table and outcome.",
		},
		[]string{"table", "outcome"},
	)

	ingestionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_engine_ingestion_runs_total",
			Help: "Total number of ingestion pipeline runs, by status.",
		},
		[]string{"status"},
	)
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordEligibilityDecision(outcome string) {
	eligibilityDecisionsTotal.WithLabelValues(outcome).Inc()
}

func RecordLoanCreated() {
	loansCreatedTotal.Inc()
}

func RecordCustomerRegistered() {
	customersRegisteredTotal.Inc()
}

func RecordIngestionRows(table, outcome string, count int) {
	if count <= 0 {
		return
	}
	ingestionRowsTotal.WithLabelValues(table, outcome).Add(float64(count))
}

func RecordIngestionRun(status string) {
	ingestionRunsTotal.WithLabelValues(status).Inc()
}
