package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "cylinders_"

	ResultSuccess = "success"
	ResultError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	registerOnce sync.Once

	ledgerBuildTotal   *prometheus.CounterVec
	ledgerBuildLatency *prometheus.HistogramVec
	ledgerRows         prometheus.Histogram
	ledgerCacheTotal   *prometheus.CounterVec
	ledgerExportTotal  *prometheus.CounterVec

	transactionWrites *prometheus.CounterVec
)

// Init registers the collectors on the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ledgerBuildTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_build_total",
				Help: "Total ledger reconciliations by result",
			},
			[]string{"result"},
		)
		ledgerBuildLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_build_latency_seconds",
				Help:    "Ledger load and reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ledgerRows = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_rows",
				Help:    "Aggregated delivery rows per ledger build",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
		ledgerCacheTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_cache_total",
				Help: "Ledger cache lookups by result",
			},
			[]string{"result"},
		)
		ledgerExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_export_total",
				Help: "Ledger exports by format and result",
			},
			[]string{"format", "result"},
		)
		transactionWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transaction_writes_total",
				Help: "Cylinder transaction writes by cylinder type and action",
			},
			[]string{"cylinder_type", "action"},
		)

		prometheus.MustRegister(
			ledgerBuildTotal,
			ledgerBuildLatency,
			ledgerRows,
			ledgerCacheTotal,
			ledgerExportTotal,
			transactionWrites,
		)
	})
}

// ObserveLedgerBuild records one reconciliation and how many rows it produced.
func ObserveLedgerBuild(result string, duration time.Duration, rows int) {
	if result == "" {
		result = ResultSuccess
	}
	if ledgerBuildTotal != nil {
		ledgerBuildTotal.WithLabelValues(result).Inc()
	}
	if ledgerBuildLatency != nil {
		ledgerBuildLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if ledgerRows != nil && result == ResultSuccess {
		ledgerRows.Observe(float64(rows))
	}
}

func IncLedgerCache(result string) {
	if ledgerCacheTotal != nil {
		ledgerCacheTotal.WithLabelValues(result).Inc()
	}
}

func IncLedgerExport(format, result string) {
	if ledgerExportTotal != nil {
		ledgerExportTotal.WithLabelValues(format, result).Inc()
	}
}

func IncTransactionWrite(cylinderType, action string) {
	if transactionWrites != nil {
		transactionWrites.WithLabelValues(cylinderType, action).Inc()
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
