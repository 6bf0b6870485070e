// Package metrics provides Prometheus metrics for the progression engine:
// ingestion volume, quest rotation, streak changes, and store health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ingestion ──────────────────────────────────────────────────────────────

// QuestionsRecorded tracks correctly answered questions credited per pet.
var QuestionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "questions_recorded_total",
	Help:      "Total correctly answered questions credited.",
}, []string{"pet"})

// CoinsEarned tracks coins credited through ingestion.
var CoinsEarned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "coins_earned_total",
	Help:      "Total coins credited for answered questions.",
})

// CoinsSpent tracks coins removed through explicit deduction.
var CoinsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "coins_spent_total",
	Help:      "Total coins deducted for purchases.",
})

// DeductionsBlocked tracks purchases refused for insufficient balance.
var DeductionsBlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "coin_deductions_blocked_total",
	Help:      "Total coin deductions that exceeded the balance.",
})

// ─── Quest rotation ─────────────────────────────────────────────────────────

// QuestCompletions tracks first detections of a completed activity.
var QuestCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "quest_completions_total",
	Help:      "Total quest activities detected complete.",
}, []string{"activity"})

// QuestAdvances tracks rollover advances to the next activity.
var QuestAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "quest_advances_total",
	Help:      "Total rollover advances past an expired cooldown.",
}, []string{"activity"})

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakIncrements tracks guarded streak increments at sign-in.
var StreakIncrements = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "streak_increments_total",
	Help:      "Total login streak increments.",
})

// StreakResets tracks streak resets (gap over 24h or first login).
var StreakResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "streak_resets_total",
	Help:      "Total login streak resets.",
})

// ─── Document store ─────────────────────────────────────────────────────────

// StoreTxnConflicts tracks optimistic transaction conflicts (retried).
var StoreTxnConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "store_txn_conflicts_total",
	Help:      "Total optimistic transaction version conflicts.",
})

// StoreBatchWrites tracks atomic field batches applied.
var StoreBatchWrites = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "store_batch_writes_total",
	Help:      "Total atomic field-op batches committed.",
})

// SubscriptionsActive tracks open document subscriptions.
var SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "storypets",
	Name:      "store_subscriptions_active",
	Help:      "Number of open document change subscriptions.",
})

// SnapshotsDropped tracks change snapshots dropped on slow subscribers.
var SnapshotsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storypets",
	Name:      "store_snapshots_dropped_total",
	Help:      "Total change snapshots dropped because a subscriber was slow.",
})
