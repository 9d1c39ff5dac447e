package types

import "errors"

// Sentinel errors for Guardhouse operations.
var (
	// ErrTreeTooDeep indicates a condition tree exceeds MaxTreeDepth.
	ErrTreeTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrTooManyListEntries indicates a list operand exceeds MaxListOperandEntries.
	ErrTooManyListEntries = errors.New("list operand has too many entries")

	// ErrTooManyActions indicates an action list exceeds MaxActionsPerRule.
	ErrTooManyActions = errors.New("rule has too many actions")

	// ErrUnknownTrigger indicates a stored trigger string is not recognized.
	ErrUnknownTrigger = errors.New("unknown trigger kind")

	// ErrUnknownOperator indicates a stored operator string is not recognized.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrMalformedRule indicates a stored rule blob could not be parsed.
	ErrMalformedRule = errors.New("malformed rule definition")

	// ErrRulesUnavailable indicates the rule store could not be reached.
	// The orchestrator fails closed: the event passes unmoderated this once.
	ErrRulesUnavailable = errors.New("rule store unavailable")

	// ErrActorUnavailable indicates the actor directory lookup failed.
	ErrActorUnavailable = errors.New("actor directory unavailable")
)
