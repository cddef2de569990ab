package services

import "github.com/prometheus/client_golang/prometheus"

var (
	negativeBalanceTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "points_negative_balance_total",
			Help: "Balance reads that came out negative",
		},
	)
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessory_purchases_total",
			Help: "Accessory purchase attempts by outcome",
		},
		[]string{"outcome"},
	)
	compensationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accessory_purchase_compensation_failures_total",
			Help: "Purchases whose ownership row could not be removed after a failed debit",
		},
	)
	unsupportedRequirementTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unlock_unsupported_requirement_total",
			Help: "Unlock requirements of an unknown type that were treated as met",
		},
		[]string{"type"},
	)
	cacheSyncFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accessory_cache_sync_failures_total",
			Help: "Equipped accessory cache refreshes that failed or were dropped",
		},
	)
	orphanedOwnerships = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessory_orphaned_ownerships",
			Help: "Owned priced accessories with no purchase debit, as of the last reconciliation",
		},
	)
	unlockPushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessory_unlock_pushes_total",
			Help: "Unlock push notifications by outcome",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers the service metrics. Call this from main.go
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		negativeBalanceTotal,
		purchasesTotal,
		compensationFailuresTotal,
		unsupportedRequirementTotal,
		cacheSyncFailuresTotal,
		orphanedOwnerships,
		unlockPushesTotal,
	)
}
