// Package types provides domain models shared across Guardhouse components.
//
// Zero-dependency design: types.go, rules.go, and errors.go use only the
// standard library so the evaluation core stays import-light. ID utilities in
// ids.go import uuid but are isolated for selective inclusion.
//
// Separation from wire formats: the chat-platform envelope and the store row
// formats are converted into these types at the gateway and cache-fill
// boundaries. Nothing in this package performs I/O.
package types

import "time"

// TriggerKind identifies which inbound event kind activates a rule.
type TriggerKind int

const (
	TriggerUnspecified TriggerKind = iota
	TriggerMessageCreate
	TriggerMessageEdit
)

// String returns the stored representation of the trigger kind.
func (t TriggerKind) String() string {
	switch t {
	case TriggerMessageCreate:
		return "on_create"
	case TriggerMessageEdit:
		return "on_edit"
	default:
		return "unspecified"
	}
}

// ParseTrigger converts a stored trigger string to a TriggerKind.
// Unknown strings map to TriggerUnspecified; callers decide whether that is fatal.
func ParseTrigger(s string) TriggerKind {
	switch s {
	case "on_create":
		return TriggerMessageCreate
	case "on_edit":
		return TriggerMessageEdit
	default:
		return TriggerUnspecified
	}
}

// Event is a single inbound chat event as delivered by the platform gateway.
// Counts the platform already knows (mentions, attachments, stickers, embeds)
// arrive pre-computed; everything derived from text (links, emoji, caps ratio)
// is computed by the field extractor on demand.
type Event struct {
	Kind            TriggerKind
	ScopeID         string // tenant/guild; empty for direct messages
	LocationID      string // channel the event occurred in
	LocationName    string
	LocationNSFW    bool
	ActorID         string
	Content         string
	MentionCount    int
	AttachmentCount int
	StickerCount    int
	EmbedCount      int
	Timestamp       time.Time
}

// Actor is the acting member with all external state pre-resolved.
// Role membership is resolved once per event by the orchestrator before any
// rule evaluation runs; the field extractor never performs lookups.
type Actor struct {
	ID               string
	Username         string
	DisplayName      string // effective display name (nickname falling back to username)
	IsBot            bool
	AccountCreatedAt time.Time
	JoinedAt         time.Time // membership start within the scope
	RoleIDs          []string
}

// ValueKind discriminates the Value tagged union.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueSet
)

// Value is an extracted field value. Exactly one payload field is meaningful
// for a given Kind; ValueAbsent carries no payload.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Set  []string
}

// Absent reports whether the value represents a missing field.
func (v Value) Absent() bool {
	return v.Kind == ValueAbsent
}

// StringValue constructs a string-kind Value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// NumberValue constructs a number-kind Value.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// BoolValue constructs a bool-kind Value.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// SetValue constructs a string-set Value.
func SetValue(s []string) Value { return Value{Kind: ValueSet, Set: s} }

// Resource limits enforced at rule parse time to bound evaluation cost.
const (
	// MaxTreeDepth prevents stack exhaustion on recursive group evaluation.
	// 8 levels covers any realistic moderation expression.
	MaxTreeDepth = 8

	// MaxListOperandEntries bounds in_list/not_in_list scans.
	// 256 entries supports large word lists without quadratic blowups.
	MaxListOperandEntries = 256

	// MaxActionsPerRule bounds side-effect fan-out for a single match.
	MaxActionsPerRule = 16
)
