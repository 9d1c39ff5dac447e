// internal/types/rules.go
package types

import "time"

/*
 * Domain types for rule evaluation.
 *
 * Provides Rule, ConditionGroup, Condition, and ActionDef structures used by
 * internal/rules for parsing and evaluation and by internal/engine for
 * orchestration. These types are store-format agnostic - blob-to-types
 * conversion happens at cache-fill time via rules.ParseRule.
 *
 * Key types:
 *   - Rule: complete rule definition with condition tree and action list
 *   - ConditionGroup: AND/OR group with per-group negation, recursive
 *   - ConditionNode: tagged union of nested group or leaf condition
 *   - Condition: single comparison over an extracted field
 *   - ActionDef: action type plus typed parameters
 *   - RuleRecord: raw store row with opaque serialized blobs
 *
 * Dependencies: none (standard library only)
 */

// GroupOperator combines the results of a group's children.
type GroupOperator int

const (
	GroupAnd GroupOperator = iota
	GroupOr
)

// String returns the stored representation of the group operator.
func (g GroupOperator) String() string {
	if g == GroupOr {
		return "or"
	}
	return "and"
}

// Operator is a leaf condition comparison operator.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEquals
	OpNotEquals
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatchesRegex
	OpGreaterThan
	OpLessThan
	OpInList
	OpNotInList
	OpHasRole
	OpNotHasRole
)

// String returns the stored representation of the operator.
func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpNotEquals:
		return "not_equals"
	case OpContains:
		return "contains"
	case OpNotContains:
		return "not_contains"
	case OpStartsWith:
		return "starts_with"
	case OpEndsWith:
		return "ends_with"
	case OpMatchesRegex:
		return "matches_regex"
	case OpGreaterThan:
		return "greater_than"
	case OpLessThan:
		return "less_than"
	case OpInList:
		return "in_list"
	case OpNotInList:
		return "not_in_list"
	case OpHasRole:
		return "has_role"
	case OpNotHasRole:
		return "not_has_role"
	default:
		return "unspecified"
	}
}

// ParseOperator converts a stored operator string to an Operator.
func ParseOperator(s string) Operator {
	switch s {
	case "equals":
		return OpEquals
	case "not_equals":
		return OpNotEquals
	case "contains":
		return OpContains
	case "not_contains":
		return OpNotContains
	case "starts_with":
		return OpStartsWith
	case "ends_with":
		return OpEndsWith
	case "matches_regex":
		return OpMatchesRegex
	case "greater_than":
		return OpGreaterThan
	case "less_than":
		return OpLessThan
	case "in_list":
		return OpInList
	case "not_in_list":
		return OpNotInList
	case "has_role":
		return OpHasRole
	case "not_has_role":
		return OpNotHasRole
	default:
		return OpUnspecified
	}
}

// Condition is a single leaf comparison over an extracted field value.
// Operand holds a string, float64, bool, or []string depending on the
// operator; evaluation coerces as needed and treats impossible coercions as
// non-matches rather than errors.
type Condition struct {
	Field           string
	Operator        Operator
	Operand         any
	CaseInsensitive bool
	Negate          bool
}

// ConditionGroup is a recursive boolean group over conditions.
// An empty group evaluates to the identity value for its operator
// (AND -> true, OR -> false) before negation is applied.
type ConditionGroup struct {
	Operator GroupOperator
	Negate   bool
	Children []ConditionNode
}

// ConditionNode is a tagged union: exactly one of Group or Leaf is non-nil.
type ConditionNode struct {
	Group *ConditionGroup
	Leaf  *Condition
}

// ActionType identifies a side-effecting moderation primitive.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionDeleteMessage
	ActionWarn
	ActionTimeout
	ActionKick
	ActionBan
	ActionDirectMessage
	ActionChannelMessage
	ActionAddRole
	ActionRemoveRole
	ActionAuditLog
)

// String returns the stored representation of the action type.
func (a ActionType) String() string {
	switch a {
	case ActionDeleteMessage:
		return "delete_message"
	case ActionWarn:
		return "warn"
	case ActionTimeout:
		return "timeout"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	case ActionDirectMessage:
		return "direct_message"
	case ActionChannelMessage:
		return "channel_message"
	case ActionAddRole:
		return "add_role"
	case ActionRemoveRole:
		return "remove_role"
	case ActionAuditLog:
		return "audit_log"
	default:
		return "unknown"
	}
}

// ParseActionType converts a stored action type string to an ActionType.
// Unknown strings map to ActionUnknown; execution logs and skips those.
func ParseActionType(s string) ActionType {
	switch s {
	case "delete_message":
		return ActionDeleteMessage
	case "warn":
		return ActionWarn
	case "timeout":
		return ActionTimeout
	case "kick":
		return ActionKick
	case "ban":
		return ActionBan
	case "direct_message":
		return ActionDirectMessage
	case "channel_message":
		return ActionChannelMessage
	case "add_role":
		return ActionAddRole
	case "remove_role":
		return ActionRemoveRole
	case "audit_log":
		return ActionAuditLog
	default:
		return ActionUnknown
	}
}

// Terminal reports whether the action removes the triggering content.
// After a terminal action fires, later rules have nothing left to act on.
func (a ActionType) Terminal() bool {
	return a == ActionDeleteMessage
}

// ActionParams holds the typed parameters an action may carry. Fields not
// relevant to a given action type are left at their zero value; execution
// substitutes safe defaults for missing parameters.
type ActionParams struct {
	Reason    string
	Duration  time.Duration // timeout length
	RoleID    string        // add_role / remove_role target
	Text      string        // direct_message / channel_message body
	PurgeDays int           // ban message purge window
}

// ActionDef is one entry of a rule's ordered action list.
// RawType preserves the stored type string for logging unknown actions.
type ActionDef struct {
	Type    ActionType
	RawType string
	Params  ActionParams
}

// Rule is the unit of moderation configuration, fully denormalized for
// evaluation. ExemptRoles and ExemptChannels are materialized as sets for
// O(1) short-circuit checks.
type Rule struct {
	ID             RuleID
	ScopeID        string
	Name           string
	Enabled        bool
	Priority       int // lower fires first
	Trigger        TriggerKind
	Conditions     ConditionGroup
	Actions        []ActionDef
	ExemptRoles    map[string]bool
	ExemptChannels map[string]bool
	Cooldown       time.Duration // zero disables suppression
}

// RuleRecord is a raw store row. Conditions, Actions, ExemptRoles, and
// ExemptChannels are opaque JSON blobs parsed at cache-fill time; a malformed
// blob isolates that rule, never the rest of the scope's rules.
type RuleRecord struct {
	RuleID          string `db:"rule_id"`
	ScopeID         string `db:"scope_id"`
	Name            string `db:"name"`
	Enabled         bool   `db:"enabled"`
	Priority        int    `db:"priority"`
	Trigger         string `db:"trigger"`
	Conditions      string `db:"conditions"`
	Actions         string `db:"actions"`
	ExemptRoles     string `db:"exempt_roles"`
	ExemptChannels  string `db:"exempt_channels"`
	CooldownSeconds int    `db:"cooldown_seconds"`
	CreatedAt       string `db:"created_at"`
}

// AuditEntry is one persisted record of a rule firing.
type AuditEntry struct {
	AuditID     AuditID
	ScopeID     string
	RuleID      RuleID
	RuleName    string
	ActorID     string
	LocationID  string
	ActionTypes []string
	Summary     string
	CreatedAt   time.Time
}
