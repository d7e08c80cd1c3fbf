package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SettlementMetrics tracks credit note allocation outcomes.
type SettlementMetrics struct {
	allocations *prometheus.CounterVec
	allocated   prometheus.Counter
	conflicts   prometheus.Counter
	mismatches  prometheus.Gauge
}

// NewSettlementMetrics registers the settlement collectors. A nil registerer
// yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "settlement",
			Name:      "allocations_total",
			Help:      "Credit note allocations by outcome.",
		}, []string{"outcome"}),
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "settlement",
			Name:      "allocated_amount_total",
			Help:      "Sum of credit amounts applied to debit notes.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "settlement",
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts hit while settling debit notes.",
		}),
		mismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "settlement",
			Name:      "reconciliation_mismatches",
			Help:      "Debit notes found inconsistent by the last reconciliation run.",
		}),
	}
	reg.MustRegister(m.allocations, m.allocated, m.conflicts, m.mismatches)
	return m
}

// ObserveAllocation records one finished allocation.
func (m *SettlementMetrics) ObserveAllocation(outcome string, amount decimal.Decimal) {
	if m == nil || m.allocations == nil {
		return
	}
	m.allocations.WithLabelValues(normalizeLabel(outcome)).Inc()
	if amount.IsPositive() {
		m.allocated.Add(amount.InexactFloat64())
	}
}

func (m *SettlementMetrics) IncVersionConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *SettlementMetrics) SetReconciliationMismatches(count int) {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.Set(float64(count))
}
