package types

import (
	"time"

	"github.com/google/uuid"
)

// RuleID represents a UUIDv7 rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// AuditID represents a UUIDv7 audit log entry identifier.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type AuditID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewAuditID generates a UUIDv7 audit entry identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewAuditID() AuditID {
	return AuditID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// AuditIDTime extracts the timestamp embedded in a UUIDv7 audit ID.
// Enables time-based queries without a database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func AuditIDTime(id AuditID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
