// internal/engine/engine.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/rules"
	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Rule engine orchestration.
 *
 * Runs the per-event state machine: resolve scope, check the moderation
 * feature flag, load the candidate rules from the cache, resolve the actor
 * once, then walk the rules in priority order applying exemption and
 * cooldown filters before evaluating each condition tree. A match marks the
 * cooldown and executes the rule's action list; a terminal action (content
 * removal) stops the walk because the event no longer exists to moderate.
 *
 * Failure posture is fail-closed and isolating:
 *   - store unreachable on cache fill: skip evaluation for this event and
 *     log; never throw back to the event-delivery system
 *   - one rule panicking or erroring: recovered at the rule boundary,
 *     logged, iteration continues - one bad rule never blocks the others
 *   - actor directory failure: skip the event (exemptions and role fields
 *     cannot be checked safely without the role set)
 *
 * The engine owns no global state: cache and cooldown maps live on the
 * instance, constructed once per process and shared by reference. Rule
 * evaluation itself is pure and runs without locking on any worker.
 */

// FeatureChecker reports whether moderation is enabled for a scope.
type FeatureChecker interface {
	AutomodEnabled(ctx context.Context, scopeID string) (bool, error)
}

// ActorDirectory resolves an acting member with roles pre-populated.
// Called exactly once per event, before any rule evaluation.
type ActorDirectory interface {
	Lookup(ctx context.Context, scopeID, actorID string) (*types.Actor, error)
}

// Engine evaluates inbound events against each scope's configured rules.
type Engine struct {
	logger    *zap.Logger
	cache     *RuleCache
	cooldowns CooldownStore
	directory ActorDirectory
	executor  *ActionExecutor
	flags     FeatureChecker
}

// New constructs an engine instance. All dependencies are required.
func New(logger *zap.Logger, cache *RuleCache, cooldowns CooldownStore, directory ActorDirectory, executor *ActionExecutor, flags FeatureChecker) *Engine {
	return &Engine{
		logger:    logger,
		cache:     cache,
		cooldowns: cooldowns,
		directory: directory,
		executor:  executor,
		flags:     flags,
	}
}

// ProcessMessage runs the full state machine for one inbound event.
// Degraded paths (store down, directory down, feature disabled) return nil:
// the observable effect of this engine is the moderation action itself, and
// isolation from the event-delivery system is this method's contract.
func (e *Engine) ProcessMessage(ctx context.Context, evt *types.Event) error {
	// Like an HTTP server, recover any panic that escapes rule handling.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event processing panic",
				zap.Any("err", r),
				zap.String("scope", evt.ScopeID),
				zap.String("actor", evt.ActorID))
		}
	}()

	if evt.ScopeID == "" {
		// Direct messages have no scope and no rules.
		eventsProcessed.WithLabelValues("no_scope").Inc()
		return nil
	}

	enabled, err := e.flags.AutomodEnabled(ctx, evt.ScopeID)
	if err != nil {
		eventsProcessed.WithLabelValues("skipped").Inc()
		e.logger.Error("feature flag lookup failed", zap.String("scope", evt.ScopeID), zap.Error(err))
		return nil
	}
	if !enabled {
		eventsProcessed.WithLabelValues("disabled").Inc()
		return nil
	}

	ruleList, err := e.cache.GetRules(ctx, evt.ScopeID, evt.Kind)
	if err != nil {
		// Fail closed: let the event pass unmoderated this once rather
		// than evaluate against no rules or stale-wrong rules.
		eventsProcessed.WithLabelValues("skipped").Inc()
		e.logger.Error("rule load failed, skipping event", zap.String("scope", evt.ScopeID), zap.Error(err))
		return nil
	}
	if len(ruleList) == 0 {
		eventsProcessed.WithLabelValues("no_rules").Inc()
		return nil
	}

	actor, err := e.directory.Lookup(ctx, evt.ScopeID, evt.ActorID)
	if err != nil {
		eventsProcessed.WithLabelValues("skipped").Inc()
		e.logger.Error("actor lookup failed, skipping event",
			zap.String("scope", evt.ScopeID),
			zap.String("actor", evt.ActorID),
			zap.Error(err))
		return nil
	}

	fired := false
	for _, rule := range ruleList {
		terminal := e.processRule(ctx, rule, evt, actor, &fired)
		if terminal {
			break
		}
	}

	if fired {
		eventsProcessed.WithLabelValues("actioned").Inc()
	} else {
		eventsProcessed.WithLabelValues("no_match").Inc()
	}
	return nil
}

// processRule applies one rule to the event and reports whether a terminal
// action fired. Every failure mode inside a single rule - panic included -
// is contained here so iteration continues with the next rule.
func (e *Engine) processRule(ctx context.Context, rule *types.Rule, evt *types.Event, actor *types.Actor, fired *bool) (terminal bool) {
	defer func() {
		if r := recover(); r != nil {
			terminal = false
			e.logger.Error("rule execution panic",
				zap.Any("err", r),
				zap.String("scope", evt.ScopeID),
				zap.String("rule", rule.Name))
		}
	}()

	if e.isExempt(rule, evt, actor) {
		return false
	}

	onCooldown, err := e.cooldowns.IsOnCooldown(ctx, string(rule.ID), actor.ID, rule.Cooldown)
	if err != nil {
		e.logger.Error("cooldown check failed",
			zap.String("rule", rule.Name),
			zap.Error(err))
		return false
	}
	if onCooldown {
		cooldownSuppressed.Inc()
		return false
	}

	if !rules.EvaluateTree(&rule.Conditions, evt, actor) {
		return false
	}

	rulesMatched.WithLabelValues(evt.Kind.String()).Inc()
	*fired = true

	if err := e.cooldowns.SetCooldown(ctx, string(rule.ID), actor.ID); err != nil {
		e.logger.Error("cooldown mark failed",
			zap.String("rule", rule.Name),
			zap.Error(err))
	}

	return e.executor.Run(ctx, rule.Actions, evt, actor, rule)
}

// isExempt short-circuits a rule when the actor holds an exempt role or the
// event location is exempt. Exempt rules are never evaluated at all.
func (e *Engine) isExempt(rule *types.Rule, evt *types.Event, actor *types.Actor) bool {
	if rule.ExemptChannels[evt.LocationID] {
		return true
	}
	for _, roleID := range actor.RoleIDs {
		if rule.ExemptRoles[roleID] {
			return true
		}
	}
	return false
}

// InvalidateScope drops the scope's cached rules. Exposed for the
// invalidation subscriber and administrative tooling.
func (e *Engine) InvalidateScope(scopeID string) {
	e.cache.Invalidate(scopeID)
}
