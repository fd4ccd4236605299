package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inventory operation results.
const (
	ResultOK       = "ok"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// InventoryMetrics counts stock ledger mutations and optimistic-lock conflicts.
type InventoryMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_operations_total",
		Help:      "Inventory ledger operations by kind and result.",
	}, []string{"op", "result"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_cas_conflicts_total",
		Help:      "Version conflicts hit by the optimistic update loop.",
	}, []string{"op"})
	reg.MustRegister(operations, conflicts)
	return &InventoryMetrics{operations: operations, conflicts: conflicts}
}

func (m *InventoryMetrics) ObserveOperation(op, result string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *InventoryMetrics) ObserveConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}
