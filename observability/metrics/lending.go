package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks ledger operation outcomes and pool balances.
type LendingMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	accrualRuns       prometheus.Counter
	liquidations      prometheus.Counter
	bankDeposited     *prometheus.GaugeVec
	bankBorrowed      *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of ledger operations by operation and outcome code.",
			}, []string{"operation", "outcome"}),
			operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lending_operation_duration_seconds",
				Help:    "Latency of ledger operations.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			accrualRuns: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_accrual_runs_total",
				Help: "Count of explicit interest accrual passes.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Count of executed liquidations.",
			}),
			bankDeposited: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_bank_deposited",
				Help: "Total deposited underlying per bank mint.",
			}, []string{"mint"}),
			bankBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_bank_borrowed",
				Help: "Total borrowed underlying per bank mint.",
			}, []string{"mint"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.operationDuration,
			lendingRegistry.accrualRuns,
			lendingRegistry.liquidations,
			lendingRegistry.bankDeposited,
			lendingRegistry.bankBorrowed,
		)
	})
	return lendingRegistry
}

// ObserveOperation records one completed operation. Outcome is "ok" or the
// stable error code.
func (m *LendingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "internal"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveAccrual counts an explicit accrual pass.
func (m *LendingMetrics) ObserveAccrual() {
	if m == nil {
		return
	}
	m.accrualRuns.Inc()
}

// ObserveLiquidation counts an executed liquidation.
func (m *LendingMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// SetBankTotals publishes a bank's pool balances.
func (m *LendingMetrics) SetBankTotals(mint string, deposited, borrowed uint64) {
	if m == nil || mint == "" {
		return
	}
	m.bankDeposited.WithLabelValues(mint).Set(float64(deposited))
	m.bankBorrowed.WithLabelValues(mint).Set(float64(borrowed))
}
