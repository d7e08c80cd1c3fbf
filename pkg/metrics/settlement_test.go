package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestSettlementMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.ObserveAllocation("full", decimal.RequireFromString("650"))
	m.ObserveAllocation("partial", decimal.RequireFromString("700"))
	m.ObserveAllocation("none", decimal.Zero)
	m.IncVersionConflict()
	m.SetReconciliationMismatches(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for outcome, want := range map[string]float64{"full": 1, "partial": 1, "none": 1} {
		got, err := fetchCounterValue(mfs, "procurement_settlement_allocations_total", map[string]string{"outcome": outcome})
		if err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		}
		if got != want {
			t.Fatalf("expected %s=%v, got %v", outcome, want, got)
		}
	}

	amount, err := fetchCounterValue(mfs, "procurement_settlement_allocated_amount_total", nil)
	if err != nil {
		t.Fatalf("fetch amount: %v", err)
	}
	if amount != 1350 {
		t.Fatalf("expected allocated amount 1350, got %v", amount)
	}

	conflicts, err := fetchCounterValue(mfs, "procurement_settlement_version_conflicts_total", nil)
	if err != nil {
		t.Fatalf("fetch conflicts: %v", err)
	}
	if conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %v", conflicts)
	}

	gauge := findMetricFamily(mfs, "procurement_settlement_reconciliation_mismatches")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected mismatch gauge of 2")
	}
}
