// internal/rules/parse.go
package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Rule denormalization from store rows.
 *
 * The store holds conditions, actions, and exemption lists as opaque JSON
 * blobs; ParseRule converts one row into a fully structured types.Rule at
 * cache-fill time. A malformed blob fails only that rule - the cache skips
 * it with a logged error and the rest of the scope's rules load normally.
 *
 * Condition tree wire format: a node with a "children" array is a group
 * (operator "and"/"or", optional "negate"); anything else is a leaf with
 * "field", "operator", "operand", and optional "case_insensitive"/"negate".
 *
 * Action parameters arrive as a loose string-keyed map and are parsed into
 * typed ActionParams here, at the store boundary only. Missing or invalid
 * parameters degrade to safe defaults rather than failing the rule:
 * a timeout without a duration gets defaultTimeout, a ban without
 * "purge_days" purges nothing. Unknown action types are preserved with their
 * raw type string so the executor can log a warning and skip them.
 *
 * Parse-time limits (tree depth, list operand size, action count) bound the
 * evaluation cost of any rule that reaches the hot path.
 */

// defaultTimeout applies when a timeout action has no usable duration.
const defaultTimeout = 5 * time.Minute

// maxBanPurgeDays caps the ban purge window to the platform maximum.
const maxBanPurgeDays = 7

// ParseRule denormalizes one store row into an evaluable rule.
func ParseRule(rec *types.RuleRecord) (*types.Rule, error) {
	trigger := types.ParseTrigger(rec.Trigger)
	if trigger == types.TriggerUnspecified {
		return nil, fmt.Errorf("rule %s: %w: %q", rec.RuleID, types.ErrUnknownTrigger, rec.Trigger)
	}

	conditions, err := ParseConditionTree([]byte(rec.Conditions))
	if err != nil {
		return nil, fmt.Errorf("rule %s: conditions: %w", rec.RuleID, err)
	}

	actions, err := parseActions([]byte(rec.Actions))
	if err != nil {
		return nil, fmt.Errorf("rule %s: actions: %w", rec.RuleID, err)
	}

	exemptRoles, err := parseIDSet([]byte(rec.ExemptRoles))
	if err != nil {
		return nil, fmt.Errorf("rule %s: exempt_roles: %w", rec.RuleID, err)
	}
	exemptChannels, err := parseIDSet([]byte(rec.ExemptChannels))
	if err != nil {
		return nil, fmt.Errorf("rule %s: exempt_channels: %w", rec.RuleID, err)
	}

	cooldown := time.Duration(rec.CooldownSeconds) * time.Second
	if cooldown < 0 {
		cooldown = 0
	}

	return &types.Rule{
		ID:             types.RuleID(rec.RuleID),
		ScopeID:        rec.ScopeID,
		Name:           rec.Name,
		Enabled:        rec.Enabled,
		Priority:       rec.Priority,
		Trigger:        trigger,
		Conditions:     *conditions,
		Actions:        actions,
		ExemptRoles:    exemptRoles,
		ExemptChannels: exemptChannels,
		Cooldown:       cooldown,
	}, nil
}

// rawNode is the wire shape shared by groups and leaves; the presence of
// a children array discriminates the two.
type rawNode struct {
	Operator        string            `json:"operator"`
	Negate          bool              `json:"negate"`
	Children        []json.RawMessage `json:"children"`
	Field           string            `json:"field"`
	Operand         any               `json:"operand"`
	CaseInsensitive bool              `json:"case_insensitive"`
}

// ParseConditionTree parses a serialized condition tree rooted at a group.
func ParseConditionTree(data []byte) (*types.ConditionGroup, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedRule, err)
	}
	return parseGroup(&raw, 1)
}

// parseGroup converts a raw group node, recursing into children.
func parseGroup(raw *rawNode, depth int) (*types.ConditionGroup, error) {
	if depth > types.MaxTreeDepth {
		return nil, types.ErrTreeTooDeep
	}

	var op types.GroupOperator
	switch raw.Operator {
	case "and", "AND", "":
		op = types.GroupAnd
	case "or", "OR":
		op = types.GroupOr
	default:
		return nil, fmt.Errorf("%w: group operator %q", types.ErrMalformedRule, raw.Operator)
	}

	group := &types.ConditionGroup{
		Operator: op,
		Negate:   raw.Negate,
		Children: make([]types.ConditionNode, 0, len(raw.Children)),
	}

	for _, childData := range raw.Children {
		var child rawNode
		if err := json.Unmarshal(childData, &child); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedRule, err)
		}
		if child.Children != nil || child.Field == "" {
			nested, err := parseGroup(&child, depth+1)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, types.ConditionNode{Group: nested})
			continue
		}
		leaf, err := parseLeaf(&child)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, types.ConditionNode{Leaf: leaf})
	}

	return group, nil
}

// parseLeaf converts a raw leaf node, validating operator and list operands.
func parseLeaf(raw *rawNode) (*types.Condition, error) {
	op := types.ParseOperator(raw.Operator)
	if op == types.OpUnspecified {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownOperator, raw.Operator)
	}
	if op == types.OpInList || op == types.OpNotInList {
		if len(ListEntries(raw.Operand)) > types.MaxListOperandEntries {
			return nil, types.ErrTooManyListEntries
		}
	}
	return &types.Condition{
		Field:           raw.Field,
		Operator:        op,
		Operand:         raw.Operand,
		CaseInsensitive: raw.CaseInsensitive,
		Negate:          raw.Negate,
	}, nil
}

// rawAction is the wire shape of one action list entry.
type rawAction struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// parseActions converts a serialized action list, preserving order.
func parseActions(data []byte) ([]types.ActionDef, error) {
	var raw []rawAction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedRule, err)
	}
	if len(raw) > types.MaxActionsPerRule {
		return nil, types.ErrTooManyActions
	}

	actions := make([]types.ActionDef, 0, len(raw))
	for _, a := range raw {
		actions = append(actions, types.ActionDef{
			Type:    types.ParseActionType(a.Type),
			RawType: a.Type,
			Params:  parseParams(a.Params),
		})
	}
	return actions, nil
}

// parseParams converts a loose parameter map into typed params with safe
// defaults. Nothing here errors: a bad parameter degrades, never crashes.
func parseParams(params map[string]any) types.ActionParams {
	p := types.ActionParams{
		Reason:   paramString(params, "reason"),
		RoleID:   paramString(params, "role_id"),
		Text:     paramString(params, "text"),
		Duration: paramDuration(params, "duration"),
	}

	if days, ok := paramNumber(params, "purge_days"); ok {
		n := int(days)
		if n < 0 {
			n = 0
		}
		if n > maxBanPurgeDays {
			n = maxBanPurgeDays
		}
		p.PurgeDays = n
	}

	return p
}

// parseIDSet parses a JSON string array into a membership set.
// An empty blob means no exemptions.
func parseIDSet(data []byte) (map[string]bool, error) {
	set := make(map[string]bool)
	if len(data) == 0 {
		return set, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedRule, err)
	}
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set, nil
}

// paramString reads a string parameter, empty when missing or mistyped.
func paramString(params map[string]any, key string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

// paramNumber reads a numeric parameter.
func paramNumber(params map[string]any, key string) (float64, bool) {
	switch n := params[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// paramDuration reads a duration parameter: either a Go duration string
// ("10m") or a plain number of seconds. Unusable values yield zero and the
// executor substitutes its default.
func paramDuration(params map[string]any, key string) time.Duration {
	switch v := params[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return 0
		}
		return d
	case float64:
		if v < 0 {
			return 0
		}
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}
