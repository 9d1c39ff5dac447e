// internal/store/store_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guardhouse/guardhouse/internal/core/db"
	"github.com/guardhouse/guardhouse/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardhouse.db")
	conn, err := db.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("failed to load queries: %v", err)
	}
	return New(queries)
}

func testRecord(id, scopeID string, priority int, enabled bool, trigger string) types.RuleRecord {
	return types.RuleRecord{
		RuleID:          id,
		ScopeID:         scopeID,
		Name:            "rule " + id,
		Enabled:         enabled,
		Priority:        priority,
		Trigger:         trigger,
		Conditions:      `{"operator":"and","children":[]}`,
		Actions:         `[{"type":"warn"}]`,
		ExemptRoles:     `[]`,
		ExemptChannels:  `[]`,
		CooldownSeconds: 0,
	}
}

func TestListEnabledRules(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, rec := range []types.RuleRecord{
		testRecord("r1", "scope-1", 2, true, "on_create"),
		testRecord("r2", "scope-1", 1, true, "on_create"),
		testRecord("r3", "scope-1", 1, false, "on_create"), // disabled
		testRecord("r4", "scope-1", 1, true, "on_edit"),    // wrong trigger
		testRecord("r5", "scope-2", 1, true, "on_create"),  // wrong scope
	} {
		if err := s.InsertRule(ctx, rec); err != nil {
			t.Fatalf("InsertRule(%s) error = %v", rec.RuleID, err)
		}
	}

	got, err := s.ListEnabledRules(ctx, "scope-1", types.TriggerMessageCreate)
	if err != nil {
		t.Fatalf("ListEnabledRules() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rules, want 2", len(got))
	}
	for _, rec := range got {
		if rec.RuleID != "r1" && rec.RuleID != "r2" {
			t.Errorf("unexpected rule %s in result", rec.RuleID)
		}
		if !rec.Enabled {
			t.Errorf("rule %s is disabled but listed", rec.RuleID)
		}
	}
}

func TestListEnabledRulesEmptyScope(t *testing.T) {
	s := testStore(t)
	got, err := s.ListEnabledRules(context.Background(), "nowhere", types.TriggerMessageCreate)
	if err != nil {
		t.Fatalf("ListEnabledRules() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rules for an unknown scope, want 0", len(got))
	}
}

func TestAutomodEnabled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// No settings row: moderation has never been enabled.
	enabled, err := s.AutomodEnabled(ctx, "scope-1")
	if err != nil {
		t.Fatalf("AutomodEnabled() error = %v", err)
	}
	if enabled {
		t.Error("a scope without settings should report disabled")
	}

	if err := s.SetAutomodEnabled(ctx, "scope-1", true); err != nil {
		t.Fatalf("SetAutomodEnabled() error = %v", err)
	}
	enabled, err = s.AutomodEnabled(ctx, "scope-1")
	if err != nil || !enabled {
		t.Errorf("AutomodEnabled() = %v, %v after enabling", enabled, err)
	}

	// Upsert path: toggling back off updates the existing row.
	if err := s.SetAutomodEnabled(ctx, "scope-1", false); err != nil {
		t.Fatalf("SetAutomodEnabled() error = %v", err)
	}
	enabled, _ = s.AutomodEnabled(ctx, "scope-1")
	if enabled {
		t.Error("scope should report disabled after toggle off")
	}
}

func TestAppendAudit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	entry := types.AuditEntry{
		AuditID:     types.NewAuditID(),
		ScopeID:     "scope-1",
		RuleID:      "rule-1",
		RuleName:    "no invites",
		ActorID:     "actor-1",
		LocationID:  "chan-1",
		ActionTypes: []string{"delete_message", "warn"},
		Summary:     "rule \"no invites\" matched actor actor-1",
		CreatedAt:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	if err := s.AppendAudit(ctx, entry); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	// A second append with a fresh ID must not conflict.
	entry.AuditID = types.NewAuditID()
	if err := s.AppendAudit(ctx, entry); err != nil {
		t.Fatalf("second AppendAudit() error = %v", err)
	}
}
