// Package metrics exposes the engine's counters as Prometheus gauges
// and counters, grounded on the teacher's payouts.PayoutMetrics
// registration idiom (NewXMetrics(namespace, registerer)).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolMetrics holds every Prometheus series this package registers.
type PoolMetrics struct {
	BlocksFound      prometheus.Counter
	PoolDisbursed    prometheus.Counter
	PoolFees         prometheus.Counter
	PoolFeesDetected prometheus.Counter
	PoolWithdrawn    prometheus.Counter
	CurrentHeight    prometheus.Gauge
	LastPaymentRun   prometheus.Gauge
	LastWithdrawalRun prometheus.Gauge
	PoolRewardBalance prometheus.Gauge
	ParticipantCount prometheus.Gauge
}

// NewPoolMetrics creates and registers every series under namespace,
// subsystem "ledger".
func NewPoolMetrics(namespace string, reg prometheus.Registerer) *PoolMetrics {
	m := &PoolMetrics{
		BlocksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "blocks_found_total",
			Help: "Total number of pool blocks credited.",
		}),
		PoolDisbursed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "pool_disbursed_satoshi_total",
			Help: "Total satoshi settled to participants via observed payout transactions.",
		}),
		PoolFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "pool_fees_satoshi_total",
			Help: "Total satoshi paid as transaction fees for payouts and withdrawals.",
		}),
		PoolFeesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "pool_fees_detected_satoshi_total",
			Help: "Total satoshi of fees observed on-chain during reconciliation.",
		}),
		PoolWithdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "pool_withdrawn_satoshi_total",
			Help: "Total satoshi withdrawn by the pool operator.",
		}),
		CurrentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "current_height",
			Help: "Height of the last block processed by the engine.",
		}),
		LastPaymentRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "last_payment_run_height",
			Help: "Height of the last payout dispatch.",
		}),
		LastWithdrawalRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "last_withdrawal_run_height",
			Help: "Height of the last owner withdrawal dispatch.",
		}),
		PoolRewardBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "pool_reward_balance_satoshi",
			Help: "Current operator-retained reward balance, in satoshi.",
		}),
		ParticipantCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "participant_count",
			Help: "Number of distinct participant balances tracked.",
		}),
	}
	reg.MustRegister(
		m.BlocksFound, m.PoolDisbursed, m.PoolFees, m.PoolFeesDetected, m.PoolWithdrawn,
		m.CurrentHeight, m.LastPaymentRun, m.LastWithdrawalRun, m.PoolRewardBalance, m.ParticipantCount,
	)
	return m
}

// SyncGauges sets every gauge from the latest store.Counters snapshot
// plus the caller's pool reward balance and participant count. It does
// not touch the five Prometheus counters (BlocksFound, PoolDisbursed,
// PoolFees, PoolFeesDetected, PoolWithdrawn), and no caller in this
// module adds to them, so they stay at zero.
func (m *PoolMetrics) SyncGauges(currentHeight, lastPaymentRun, lastWithdrawalRun int32, poolRewardBalance uint64, participantCount int) {
	m.CurrentHeight.Set(float64(currentHeight))
	m.LastPaymentRun.Set(float64(lastPaymentRun))
	m.LastWithdrawalRun.Set(float64(lastWithdrawalRun))
	m.PoolRewardBalance.Set(float64(poolRewardBalance))
	m.ParticipantCount.Set(float64(participantCount))
}
