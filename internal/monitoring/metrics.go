// Package monitoring exposes Prometheus metrics for the signal engine.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	scansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_engine_scans_total",
			Help: "Total number of scan sweeps executed",
		},
	)

	scanFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_engine_scan_failures_total",
			Help: "Total number of symbols that failed during scan sweeps",
		},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_engine_scan_duration_seconds",
			Help:    "Duration of scan sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	signalsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_signals_detected_total",
			Help: "Total number of signals emitted by scan sweeps",
		},
		[]string{"symbol", "side"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_order_transitions_total",
			Help: "Order lifecycle transitions by terminal status",
		},
		[]string{"status"},
	)

	tradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_trades_closed_total",
			Help: "Closed trades by exit reason",
		},
		[]string{"reason"},
	)

	openTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signal_engine_open_trades",
			Help: "Number of currently open trades",
		},
	)
)

func init() {
	prometheus.MustRegister(scansTotal)
	prometheus.MustRegister(scanFailuresTotal)
	prometheus.MustRegister(scanDuration)
	prometheus.MustRegister(signalsDetected)
	prometheus.MustRegister(orderTransitions)
	prometheus.MustRegister(tradesClosed)
	prometheus.MustRegister(openTrades)
}

// RecordScan records the outcome of one scan sweep.
func RecordScan(failed int, seconds float64) {
	scansTotal.Inc()
	scanFailuresTotal.Add(float64(failed))
	scanDuration.Observe(seconds)
}

// RecordSignal records an emitted signal.
func RecordSignal(symbol, side string) {
	signalsDetected.WithLabelValues(symbol, side).Inc()
}

// RecordOrderTransition records an order reaching a terminal status.
func RecordOrderTransition(status string) {
	orderTransitions.WithLabelValues(status).Inc()
}

// RecordTradeClosed records a closed trade.
func RecordTradeClosed(reason string) {
	tradesClosed.WithLabelValues(reason).Inc()
}

// SetOpenTrades updates the open trade gauge.
func SetOpenTrades(n int) {
	openTrades.Set(float64(n))
}
