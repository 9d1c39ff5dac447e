// internal/engine/metrics.go
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardhouse_events_processed_total",
	Help: "Inbound events processed, labeled by terminal outcome.",
}, []string{"outcome"})

var rulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardhouse_rules_matched_total",
	Help: "Rules whose condition tree matched an event.",
}, []string{"trigger"})

var actionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardhouse_actions_executed_total",
	Help: "Actions dispatched to moderation primitives.",
}, []string{"action", "status"})

var ruleFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardhouse_rule_fetches_total",
	Help: "Rule cache lookups by result (hit, miss, error).",
}, []string{"result"})

var cooldownSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardhouse_cooldown_suppressed_total",
	Help: "Rule firings suppressed by an open cooldown window.",
})
