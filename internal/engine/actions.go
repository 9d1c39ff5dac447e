// internal/engine/actions.go
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Action execution.
 *
 * Runs a matched rule's ordered action list, dispatching each entry to the
 * corresponding side-effecting primitive on the ActionClient. Failures are
 * isolated per action: a permission error on the warn must not stop the
 * delete that follows it, and nothing here ever aborts other rules. The
 * engine performs no retries; retry/backoff belongs to the primitive's own
 * implementation.
 *
 * Unknown action types (newer authoring surface than engine) are logged
 * no-ops, never fatal. Run reports whether a terminal action - one that
 * removed the triggering content - executed, so the orchestrator can stop
 * iterating further rules for the event.
 */

// ActionClient is the set of external moderation primitives.
// The production implementation publishes commands to the platform gateway;
// tests substitute a recorder.
type ActionClient interface {
	DeleteContent(ctx context.Context, evt *types.Event) error
	Warn(ctx context.Context, scopeID, actorID, reason string) error
	Timeout(ctx context.Context, scopeID, actorID string, duration time.Duration, reason string) error
	Kick(ctx context.Context, scopeID, actorID, reason string) error
	Ban(ctx context.Context, scopeID, actorID, reason string, purgeDays int) error
	DirectMessage(ctx context.Context, actorID, text string) error
	SendToLocation(ctx context.Context, locationID, text string) error
	AddRole(ctx context.Context, scopeID, actorID, roleID string) error
	RemoveRole(ctx context.Context, scopeID, actorID, roleID string) error
	AuditLog(ctx context.Context, entry *types.AuditEntry) error
}

// ActionExecutor dispatches action lists to an ActionClient.
type ActionExecutor struct {
	client ActionClient
	logger *zap.Logger
}

// NewActionExecutor creates an executor over the given client.
func NewActionExecutor(client ActionClient, logger *zap.Logger) *ActionExecutor {
	return &ActionExecutor{client: client, logger: logger}
}

// Run executes the action list in order and reports whether a terminal
// action fired. Each action's failure is logged and the rest still run.
func (x *ActionExecutor) Run(ctx context.Context, actions []types.ActionDef, evt *types.Event, actor *types.Actor, rule *types.Rule) bool {
	terminal := false
	for i := range actions {
		action := &actions[i]
		if action.Type == types.ActionUnknown {
			actionsExecuted.WithLabelValues("unknown", "skipped").Inc()
			x.logger.Warn("unknown action type",
				zap.String("rule", rule.Name),
				zap.String("action", action.RawType))
			continue
		}

		err := x.dispatch(ctx, action, evt, actor, rule)
		if err != nil {
			actionsExecuted.WithLabelValues(action.Type.String(), "error").Inc()
			x.logger.Error("action failed",
				zap.String("rule", rule.Name),
				zap.String("action", action.Type.String()),
				zap.Error(err))
			continue
		}
		actionsExecuted.WithLabelValues(action.Type.String(), "ok").Inc()
		if action.Type.Terminal() {
			terminal = true
		}
	}
	return terminal
}

// dispatch maps one action to its primitive, filling defaults for missing
// parameters.
func (x *ActionExecutor) dispatch(ctx context.Context, action *types.ActionDef, evt *types.Event, actor *types.Actor, rule *types.Rule) error {
	p := action.Params
	switch action.Type {
	case types.ActionDeleteMessage:
		return x.client.DeleteContent(ctx, evt)
	case types.ActionWarn:
		return x.client.Warn(ctx, evt.ScopeID, actor.ID, reasonOrRule(p.Reason, rule))
	case types.ActionTimeout:
		d := p.Duration
		if d <= 0 {
			d = defaultActionTimeout
		}
		return x.client.Timeout(ctx, evt.ScopeID, actor.ID, d, reasonOrRule(p.Reason, rule))
	case types.ActionKick:
		return x.client.Kick(ctx, evt.ScopeID, actor.ID, reasonOrRule(p.Reason, rule))
	case types.ActionBan:
		return x.client.Ban(ctx, evt.ScopeID, actor.ID, reasonOrRule(p.Reason, rule), p.PurgeDays)
	case types.ActionDirectMessage:
		if p.Text == "" {
			// Nothing to send; a missing body degrades to a no-op.
			return nil
		}
		return x.client.DirectMessage(ctx, actor.ID, p.Text)
	case types.ActionChannelMessage:
		if p.Text == "" {
			return nil
		}
		return x.client.SendToLocation(ctx, evt.LocationID, p.Text)
	case types.ActionAddRole:
		if p.RoleID == "" {
			return nil
		}
		return x.client.AddRole(ctx, evt.ScopeID, actor.ID, p.RoleID)
	case types.ActionRemoveRole:
		if p.RoleID == "" {
			return nil
		}
		return x.client.RemoveRole(ctx, evt.ScopeID, actor.ID, p.RoleID)
	case types.ActionAuditLog:
		return x.client.AuditLog(ctx, &types.AuditEntry{
			AuditID:     types.NewAuditID(),
			ScopeID:     evt.ScopeID,
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			ActorID:     actor.ID,
			LocationID:  evt.LocationID,
			ActionTypes: actionKinds(rule),
			Summary:     auditSummary(rule, evt, actor),
			CreatedAt:   time.Now().UTC(),
		})
	default:
		return fmt.Errorf("unhandled action type %d", action.Type)
	}
}

// defaultActionTimeout applies when a timeout action carries no duration.
const defaultActionTimeout = 5 * time.Minute

// reasonOrRule falls back to naming the rule when the author gave no reason.
func reasonOrRule(reason string, rule *types.Rule) string {
	if reason != "" {
		return reason
	}
	return "rule: " + rule.Name
}

// actionKinds lists the string names of a rule's action types.
func actionKinds(rule *types.Rule) []string {
	kinds := make([]string, 0, len(rule.Actions))
	for _, a := range rule.Actions {
		kinds = append(kinds, a.Type.String())
	}
	return kinds
}

// auditSummary renders a one-line description of the firing for audit sinks.
func auditSummary(rule *types.Rule, evt *types.Event, actor *types.Actor) string {
	return fmt.Sprintf("rule %q matched actor %s in %s (%s)",
		rule.Name, actor.ID, evt.LocationID, strings.Join(actionKinds(rule), ","))
}
