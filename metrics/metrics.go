// Package metrics exposes prometheus instruments for switch provisioning.
package metrics

import (
	"time"

	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchctrl_transactions_total",
			Help: "Total number of provisioning transactions by outcome",
		},
		[]string{"vendor", "operation", "result"},
	)

	transactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchctrl_transaction_duration_seconds",
			Help:    "Duration of provisioning transactions from lock to release",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"vendor", "operation"},
	)

	lockReleaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchctrl_lock_release_failures_total",
			Help: "Unlock attempts that failed and may have left a switch locked",
		},
		[]string{"vendor", "switch"},
	)

	sessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchctrl_session_events_total",
			Help: "Session connects, disconnects and reconnects",
		},
		[]string{"vendor", "event"},
	)

	refTableRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchctrl_ref_table_rebuilds_total",
			Help: "SNMP reference table rebuilds by table and result",
		},
		[]string{"switch", "table", "result"},
	)
)

// Result returns the metric label for err
func Result(err error) string {
	if err == nil {
		return "success"
	}
	if k := types.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// ObserveTransaction records one finished transaction
func ObserveTransaction(vendor types.Vendor, op types.Operation, err error, elapsed time.Duration) {
	transactionsTotal.WithLabelValues(string(vendor), string(op), Result(err)).Inc()
	transactionDuration.WithLabelValues(string(vendor), string(op)).Observe(elapsed.Seconds())
}

// LockReleaseFailed records an unlock that did not succeed
func LockReleaseFailed(vendor types.Vendor, switchName string) {
	lockReleaseFailures.WithLabelValues(string(vendor), switchName).Inc()
}

// SessionEvent records a lifecycle event ("connect", "disconnect", "reconnect", "connect_failed")
func SessionEvent(vendor types.Vendor, event string) {
	sessionEvents.WithLabelValues(string(vendor), event).Inc()
}

// RefTableRebuilt records a reference table rebuild
func RefTableRebuilt(switchName, table string, err error) {
	refTableRebuilds.WithLabelValues(switchName, table, Result(err)).Inc()
}
