package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger core and its jobs.
type Metrics struct {
	// Action outcomes by action kind and result code ("ok" on success)
	Actions *prometheus.CounterVec

	// Dispatch latency by action kind
	ActionLatency *prometheus.HistogramVec

	IssuedSupply   prometheus.Gauge
	JournalRecords prometheus.Gauge
	SweptRecords   prometheus.Counter

	// Snapshot saves by backend and result
	Snapshots *prometheus.CounterVec
}

// New registers the ledger metrics with reg. Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftledger_actions_total",
			Help: "Total ledger actions by kind and outcome code",
		}, []string{"action", "code"}),

		ActionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ftledger_action_duration_seconds",
			Help:    "Duration of ledger action dispatch",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}, []string{"action"}),

		IssuedSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ftledger_issued_supply",
			Help: "Issued token supply in base units (lossy above 2^53)",
		}),

		JournalRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ftledger_journal_records",
			Help: "Transaction journal records currently stored, including expired ones awaiting sweep",
		}),

		SweptRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "ftledger_journal_swept_total",
			Help: "Expired journal records removed by sweeps",
		}),

		Snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftledger_snapshots_total",
			Help: "Snapshot saves by backend and result",
		}, []string{"backend", "result"}),
	}
}

// ObserveAction records the outcome and latency of one dispatched action.
func (m *Metrics) ObserveAction(action, code string, d time.Duration) {
	if m != nil {
		m.Actions.WithLabelValues(action, code).Inc()
		m.ActionLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

func (m *Metrics) SetIssuedSupply(v float64) {
	if m != nil {
		m.IssuedSupply.Set(v)
	}
}

func (m *Metrics) SetJournalRecords(n int) {
	if m != nil {
		m.JournalRecords.Set(float64(n))
	}
}

func (m *Metrics) AddSwept(n int) {
	if m != nil {
		m.SweptRecords.Add(float64(n))
	}
}

// IncrementSnapshot records a snapshot save attempt.
func (m *Metrics) IncrementSnapshot(backend, result string) {
	if m != nil {
		m.Snapshots.WithLabelValues(backend, result).Inc()
	}
}
