// internal/engine/cooldown_test.go
package engine

import (
	"context"
	"testing"
	"time"
)

func TestMemCooldownSuppression(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	current := base

	s := NewMemCooldownStore()
	s.now = func() time.Time { return current }

	window := 60 * time.Second

	on, err := s.IsOnCooldown(ctx, "rule-1", "actor-1", window)
	if err != nil || on {
		t.Fatalf("fresh pair should not be on cooldown (on=%v err=%v)", on, err)
	}

	if err := s.SetCooldown(ctx, "rule-1", "actor-1"); err != nil {
		t.Fatalf("SetCooldown() error = %v", err)
	}

	// One second before the window closes: still suppressed.
	current = base.Add(window - time.Second)
	on, _ = s.IsOnCooldown(ctx, "rule-1", "actor-1", window)
	if !on {
		t.Error("pair should be suppressed just inside the window")
	}

	// One second after the window: eligible again.
	current = base.Add(window + time.Second)
	on, _ = s.IsOnCooldown(ctx, "rule-1", "actor-1", window)
	if on {
		t.Error("pair should be eligible just past the window")
	}
}

func TestMemCooldownDisabledWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemCooldownStore()
	if err := s.SetCooldown(ctx, "rule-1", "actor-1"); err != nil {
		t.Fatal(err)
	}
	for _, window := range []time.Duration{0, -time.Minute} {
		on, err := s.IsOnCooldown(ctx, "rule-1", "actor-1", window)
		if err != nil || on {
			t.Errorf("window %v should disable cooldown (on=%v err=%v)", window, on, err)
		}
	}
}

func TestMemCooldownKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemCooldownStore()
	s.SetCooldown(ctx, "rule-1", "actor-1")

	on, _ := s.IsOnCooldown(ctx, "rule-1", "actor-2", time.Hour)
	if on {
		t.Error("a different actor must not share the cooldown")
	}
	on, _ = s.IsOnCooldown(ctx, "rule-2", "actor-1", time.Hour)
	if on {
		t.Error("a different rule must not share the cooldown")
	}
}

func TestMemCooldownSweep(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	current := base

	s := NewMemCooldownStore()
	s.now = func() time.Time { return current }

	s.SetCooldown(ctx, "rule-old", "actor-1")
	current = base.Add(50 * time.Minute)
	s.SetCooldown(ctx, "rule-new", "actor-1")

	current = base.Add(70 * time.Minute)
	removed := s.Sweep(time.Hour)
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}

	// The surviving entry still suppresses within its window.
	on, _ := s.IsOnCooldown(ctx, "rule-new", "actor-1", time.Hour)
	if !on {
		t.Error("recent entry should survive the sweep")
	}
	on, _ = s.IsOnCooldown(ctx, "rule-old", "actor-1", 2*time.Hour)
	if on {
		t.Error("swept entry should no longer suppress")
	}
}
