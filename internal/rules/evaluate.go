// internal/rules/evaluate.go
package rules

import (
	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Condition and condition-tree evaluation.
 *
 * Evaluates a rule's recursive boolean expression against one event with its
 * pre-resolved actor. Evaluation is pure: field extraction, comparison, and
 * tree composition never perform I/O, so repeated evaluation of a fixed
 * (condition, event, actor) triple always yields the same result.
 *
 * Leaf semantics:
 *   1. Resolve the field via Extract
 *   2. Absent field + any operator except equals -> false before negation.
 *      equals falls through to direct comparison instead (an absent value
 *      compares as empty); rule authors depend on this asymmetry, so it is
 *      preserved rather than normalized.
 *   3. Compare via the operator table
 *   4. XOR with the condition's negate flag
 *
 * Group semantics: AND requires all children true, OR requires any. An empty
 * group evaluates to the operator's identity (AND -> true, OR -> false)
 * before the group's negate flag applies. Children short-circuit in list
 * order; conditions are side-effect-free so short-circuiting is safe.
 */

// Evaluate checks a single leaf condition against the event and actor.
func Evaluate(cond *types.Condition, evt *types.Event, actor *types.Actor) bool {
	v := Extract(cond.Field, evt, actor)
	if v.Absent() && cond.Operator != types.OpEquals {
		return cond.Negate
	}
	matched := Compare(cond.Operator, v, cond.Operand, cond.CaseInsensitive)
	return matched != cond.Negate
}

// EvaluateTree recursively evaluates a condition group.
func EvaluateTree(group *types.ConditionGroup, evt *types.Event, actor *types.Actor) bool {
	var result bool
	switch group.Operator {
	case types.GroupOr:
		result = false
		for i := range group.Children {
			if evaluateNode(&group.Children[i], evt, actor) {
				result = true
				break
			}
		}
	default: // GroupAnd
		result = true
		for i := range group.Children {
			if !evaluateNode(&group.Children[i], evt, actor) {
				result = false
				break
			}
		}
	}
	return result != group.Negate
}

// evaluateNode dispatches a tagged-union child to the group or leaf path.
// A node with neither side set contributes a non-match.
func evaluateNode(node *types.ConditionNode, evt *types.Event, actor *types.Actor) bool {
	if node.Group != nil {
		return EvaluateTree(node.Group, evt, actor)
	}
	if node.Leaf != nil {
		return Evaluate(node.Leaf, evt, actor)
	}
	return false
}
