// internal/rules/operators.go
package rules

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements 13 comparison operators over extracted field values. The
 * evaluator resolves the field first; Compare never sees I/O or state.
 *
 * Operators:
 *   - equals/not_equals: direct comparison, numeric-aware
 *   - contains/not_contains/starts_with/ends_with: string comparison
 *   - matches_regex: operand compiled per evaluation; compile failure is a
 *     non-match, never an error
 *   - greater_than/less_than: numeric coercion of both sides; non-numeric
 *     coerces to NaN and every NaN comparison is false
 *   - in_list/not_in_list: operand is a string list or comma-separated
 *     string; a condition matches when any trimmed entry occurs as a
 *     substring of the candidate value (existing contract, see evaluate.go)
 *   - has_role/not_has_role: exact membership in a role-id set
 *
 * The caseInsensitive flag lowercases both the field value and the operand
 * for the string operators, including the regex operand.
 *
 * Why function-based: a switch over operators stays a single page; 13
 * interface implementations with near-identical shape would not.
 */

// Compare applies the operator to the extracted value and operand.
// The result is pre-negation; the evaluator applies the condition's negate flag.
func Compare(op types.Operator, v types.Value, operand any, caseInsensitive bool) bool {
	switch op {
	case types.OpEquals:
		return compareEquals(v, operand, caseInsensitive)
	case types.OpNotEquals:
		return !compareEquals(v, operand, caseInsensitive)
	case types.OpContains:
		return compareContains(v, operand, caseInsensitive)
	case types.OpNotContains:
		return !compareContains(v, operand, caseInsensitive)
	case types.OpStartsWith:
		s, o := stringSides(v, operand, caseInsensitive)
		return strings.HasPrefix(s, o)
	case types.OpEndsWith:
		s, o := stringSides(v, operand, caseInsensitive)
		return strings.HasSuffix(s, o)
	case types.OpMatchesRegex:
		return compareRegex(v, operand, caseInsensitive)
	case types.OpGreaterThan:
		a, b := numericSides(v, operand)
		return a > b
	case types.OpLessThan:
		a, b := numericSides(v, operand)
		return a < b
	case types.OpInList:
		return compareInList(v, operand)
	case types.OpNotInList:
		return !compareInList(v, operand)
	case types.OpHasRole:
		return compareHasRole(v, operand)
	case types.OpNotHasRole:
		return compareNotHasRole(v, operand)
	default:
		return false
	}
}

// compareEquals compares value and operand within the value's own kind.
// Numbers compare numerically, booleans as booleans, everything else as
// strings. An absent value compares as an empty string, which is how equals
// against a missing field falls through (see evaluate.go).
func compareEquals(v types.Value, operand any, caseInsensitive bool) bool {
	switch v.Kind {
	case types.ValueNumber:
		o, ok := toNumber(operand)
		return ok && v.Num == o
	case types.ValueBool:
		o, ok := operand.(bool)
		if ok {
			return v.Bool == o
		}
		// Stored operands may arrive as "true"/"false" strings.
		if s, sok := operand.(string); sok {
			b, err := strconv.ParseBool(s)
			return err == nil && v.Bool == b
		}
		return false
	default:
		s, o := stringSides(v, operand, caseInsensitive)
		return s == o
	}
}

// compareContains checks operand substring presence within the value.
func compareContains(v types.Value, operand any, caseInsensitive bool) bool {
	s, o := stringSides(v, operand, caseInsensitive)
	return o != "" && strings.Contains(s, o)
}

// compareRegex matches the value against the operand compiled as a regular
// expression. A compilation failure is treated as a non-match so a bad
// pattern in one rule never aborts evaluation.
//
// TODO: precompile regex operands at parse time and store them on the
// condition; per-evaluation compilation is correct but wasteful for hot rules.
func compareRegex(v types.Value, operand any, caseInsensitive bool) bool {
	s, pattern := stringSides(v, operand, caseInsensitive)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// compareInList reports whether any list entry occurs as a substring of the
// candidate value. This is containment, not exact membership: operand
// "spam,scam" matches the value "this looks like a scam". The semantic is
// preserved from the original contract that rule authors rely on.
func compareInList(v types.Value, operand any) bool {
	candidate := valueString(v)
	for _, entry := range ListEntries(operand) {
		if strings.Contains(candidate, entry) {
			return true
		}
	}
	return false
}

// compareHasRole checks exact membership of the operand role id in the
// value's role set. A non-set value never matches.
func compareHasRole(v types.Value, operand any) bool {
	if v.Kind != types.ValueSet {
		return false
	}
	want, ok := operand.(string)
	if !ok || want == "" {
		return false
	}
	for _, id := range v.Set {
		if id == want {
			return true
		}
	}
	return false
}

// compareNotHasRole is the membership complement, still requiring a role set.
// A non-set value is a non-match for both directions rather than a vacuous
// "does not have the role".
func compareNotHasRole(v types.Value, operand any) bool {
	if v.Kind != types.ValueSet {
		return false
	}
	return !compareHasRole(v, operand)
}

// ListEntries normalizes a list operand: a []string or []any of strings is
// used as-is, a plain string is split on commas. Entries are trimmed and
// empties dropped.
func ListEntries(operand any) []string {
	var raw []string
	switch o := operand.(type) {
	case []string:
		raw = o
	case []any:
		for _, e := range o {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(o, ",")
	default:
		return nil
	}

	entries := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.TrimSpace(e)
		if e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// stringSides renders both sides as strings, lowercasing both when the
// case-insensitive flag is set.
func stringSides(v types.Value, operand any, caseInsensitive bool) (string, string) {
	s := valueString(v)
	o := operandString(operand)
	if caseInsensitive {
		return strings.ToLower(s), strings.ToLower(o)
	}
	return s, o
}

// numericSides coerces both sides to float64, producing NaN for anything
// non-numeric. NaN poisons the comparison: every ordering test returns false.
func numericSides(v types.Value, operand any) (float64, float64) {
	a := valueNumber(v)
	b, ok := toNumber(operand)
	if !ok {
		b = math.NaN()
	}
	return a, b
}

// valueString renders an extracted value as a string. Absent renders empty.
func valueString(v types.Value) string {
	switch v.Kind {
	case types.ValueString:
		return v.Str
	case types.ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case types.ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case types.ValueSet:
		return strings.Join(v.Set, ",")
	default:
		return ""
	}
}

// valueNumber renders an extracted value as a float64, NaN when impossible.
func valueNumber(v types.Value) float64 {
	switch v.Kind {
	case types.ValueNumber:
		return v.Num
	case types.ValueString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// operandString renders a stored operand as a string.
func operandString(operand any) string {
	switch o := operand.(type) {
	case string:
		return o
	case float64:
		return strconv.FormatFloat(o, 'f', -1, 64)
	case int:
		return strconv.Itoa(o)
	case bool:
		if o {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// toNumber converts a stored operand to float64 if it is numeric.
// Numeric strings are accepted; booleans are not.
func toNumber(operand any) (float64, bool) {
	switch o := operand.(type) {
	case float64:
		return o, true
	case int:
		return float64(o), true
	case int64:
		return float64(o), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(o), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
