// internal/store/store.go
package store

/*
Store is the persistence surface the moderation engine depends on. It wraps
the named-query layer in internal/core/db and exposes exactly the reads the
hot path needs (enabled rules per scope and trigger, scope feature flag) plus
the audit append that runs after actions execute.

The engine treats every error here as a reason to skip the event rather than
act on stale or partial data. Missing scope settings are not an error: a
scope that never opted in has automod disabled.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guardhouse/guardhouse/internal/core/db"
	"github.com/guardhouse/guardhouse/internal/types"
)

// Store executes rule, scope and audit queries against the backing database.
type Store struct {
	queries *db.Queries
}

// New creates a Store over a loaded query set.
func New(queries *db.Queries) *Store {
	return &Store{queries: queries}
}

// ListEnabledRules returns the raw rule rows for a scope and trigger.
// Rows come back in insertion order; priority ordering is applied by the
// rule cache after parsing, so the query stays index-friendly.
func (s *Store) ListEnabledRules(ctx context.Context, scopeID string, trigger types.TriggerKind) ([]types.RuleRecord, error) {
	var records []types.RuleRecord
	err := s.queries.Select(ctx, "list-enabled-rules", &records, scopeID, trigger.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for scope %s: %w", scopeID, err)
	}
	return records, nil
}

// AutomodEnabled reports whether automated moderation is switched on for a
// scope. A scope with no settings row has never been configured and is
// treated as disabled.
func (s *Store) AutomodEnabled(ctx context.Context, scopeID string) (bool, error) {
	var enabled bool
	err := s.queries.Get(ctx, "get-scope-settings", &enabled, scopeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read scope settings for %s: %w", scopeID, err)
	}
	return enabled, nil
}

// SetAutomodEnabled switches automated moderation on or off for a scope,
// creating the settings row if it does not exist.
func (s *Store) SetAutomodEnabled(ctx context.Context, scopeID string, enabled bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.queries.Exec(ctx, "upsert-scope-settings", scopeID, enabled, now)
	if err != nil {
		return fmt.Errorf("failed to update scope settings for %s: %w", scopeID, err)
	}
	return nil
}

// InsertRule persists a raw rule row. Used by the migrate/seed tooling and
// tests; the engine itself never writes rules.
func (s *Store) InsertRule(ctx context.Context, rec types.RuleRecord) error {
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := rec.CreatedAt
	if createdAt == "" {
		createdAt = now
	}
	_, err := s.queries.Exec(ctx, "insert-rule",
		rec.RuleID,
		rec.ScopeID,
		rec.Name,
		rec.Enabled,
		rec.Priority,
		rec.Trigger,
		rec.Conditions,
		rec.Actions,
		emptyJSONArray(rec.ExemptRoles),
		emptyJSONArray(rec.ExemptChannels),
		rec.CooldownSeconds,
		createdAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule %s: %w", rec.RuleID, err)
	}
	return nil
}

// AppendAudit records a rule firing. Action types are stored as a JSON
// array so the row stays queryable without a join table.
func (s *Store) AppendAudit(ctx context.Context, entry types.AuditEntry) error {
	actionTypes, err := json.Marshal(entry.ActionTypes)
	if err != nil {
		return fmt.Errorf("failed to encode action types: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.queries.Exec(ctx, "insert-audit-entry",
		string(entry.AuditID),
		entry.ScopeID,
		string(entry.RuleID),
		entry.RuleName,
		entry.ActorID,
		entry.LocationID,
		string(actionTypes),
		entry.Summary,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry %s: %w", entry.AuditID, err)
	}
	return nil
}

func emptyJSONArray(blob string) string {
	if blob == "" {
		return "[]"
	}
	return blob
}
