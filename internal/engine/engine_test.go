// internal/engine/engine_test.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/types"
)

// recorderClient records every primitive invocation in order.
type recorderClient struct {
	mu       sync.Mutex
	calls    []string
	failWarn bool
	audits   []types.AuditEntry
}

func (r *recorderClient) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorderClient) DeleteContent(ctx context.Context, evt *types.Event) error {
	r.record("delete")
	return nil
}

func (r *recorderClient) Warn(ctx context.Context, scopeID, actorID, reason string) error {
	r.record("warn:" + reason)
	if r.failWarn {
		return fmt.Errorf("permission denied")
	}
	return nil
}

func (r *recorderClient) Timeout(ctx context.Context, scopeID, actorID string, duration time.Duration, reason string) error {
	r.record(fmt.Sprintf("timeout:%s", duration))
	return nil
}

func (r *recorderClient) Kick(ctx context.Context, scopeID, actorID, reason string) error {
	r.record("kick")
	return nil
}

func (r *recorderClient) Ban(ctx context.Context, scopeID, actorID, reason string, purgeDays int) error {
	r.record(fmt.Sprintf("ban:%d", purgeDays))
	return nil
}

func (r *recorderClient) DirectMessage(ctx context.Context, actorID, text string) error {
	r.record("dm:" + text)
	return nil
}

func (r *recorderClient) SendToLocation(ctx context.Context, locationID, text string) error {
	r.record("channel:" + text)
	return nil
}

func (r *recorderClient) AddRole(ctx context.Context, scopeID, actorID, roleID string) error {
	r.record("add_role:" + roleID)
	return nil
}

func (r *recorderClient) RemoveRole(ctx context.Context, scopeID, actorID, roleID string) error {
	r.record("remove_role:" + roleID)
	return nil
}

func (r *recorderClient) AuditLog(ctx context.Context, entry *types.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "audit")
	r.audits = append(r.audits, *entry)
	return nil
}

type fakeDirectory struct {
	actor *types.Actor
	err   error
	calls int
}

func (d *fakeDirectory) Lookup(ctx context.Context, scopeID, actorID string) (*types.Actor, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.actor, nil
}

type fakeFlags struct {
	enabled bool
	err     error
}

func (f *fakeFlags) AutomodEnabled(ctx context.Context, scopeID string) (bool, error) {
	return f.enabled, f.err
}

func testEngineActor() *types.Actor {
	return &types.Actor{
		ID:      "actor-1",
		RoleIDs: []string{"role-a"},
	}
}

func testEngineEvent() *types.Event {
	return &types.Event{
		Kind:       types.TriggerMessageCreate,
		ScopeID:    "scope-1",
		LocationID: "chan-1",
		ActorID:    "actor-1",
		Content:    "hello",
		Timestamp:  time.Now().UTC(),
	}
}

// newTestEngine wires an engine over fakes, returning the recorder for
// asserting action order.
func newTestEngine(t *testing.T, records []types.RuleRecord) (*Engine, *recorderClient, *fakeDirectory) {
	t.Helper()
	fetcher := &fakeFetcher{records: map[string][]types.RuleRecord{
		"scope-1|on_create": records,
	}}
	client := &recorderClient{}
	directory := &fakeDirectory{actor: testEngineActor()}
	logger := zap.NewNop()
	eng := New(logger,
		NewRuleCache(fetcher, logger, time.Minute),
		NewMemCooldownStore(),
		directory,
		NewActionExecutor(client, logger),
		&fakeFlags{enabled: true})
	return eng, client, directory
}

func warnRule(id string, priority int, reason string) types.RuleRecord {
	rec := record(id, priority)
	rec.Actions = fmt.Sprintf(`[{"type":"warn","params":{"reason":"%s"}}]`, reason)
	return rec
}

func TestProcessMessagePriorityOrder(t *testing.T) {
	eng, client, _ := newTestEngine(t, []types.RuleRecord{
		warnRule("r3", 3, "p3"),
		warnRule("r1", 1, "p1"),
		warnRule("r2", 2, "p2"),
	})

	err := eng.ProcessMessage(context.Background(), testEngineEvent())
	require.NoError(t, err)
	assert.Equal(t, []string{"warn:p1", "warn:p2", "warn:p3"}, client.calls)
}

func TestProcessMessageTerminalShortCircuit(t *testing.T) {
	deleter := record("r1", 1)
	deleter.Actions = `[{"type":"delete_message"},{"type":"warn","params":{"reason":"after"}}]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{
		deleter,
		warnRule("r2", 2, "never"),
	})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))

	// The deleting rule's own remaining actions still run; later rules do not.
	assert.Equal(t, []string{"delete", "warn:after"}, client.calls)
}

func TestProcessMessageRoleExemption(t *testing.T) {
	rec := warnRule("r1", 1, "exempted")
	rec.ExemptRoles = `["role-a"]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Empty(t, client.calls, "an exempt role must short-circuit the rule")
}

func TestProcessMessageChannelExemption(t *testing.T) {
	rec := warnRule("r1", 1, "exempted")
	rec.ExemptChannels = `["chan-1"]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Empty(t, client.calls)
}

func TestProcessMessageCooldownSuppression(t *testing.T) {
	rec := warnRule("r1", 1, "once")
	rec.CooldownSeconds = 60
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	ctx := context.Background()
	require.NoError(t, eng.ProcessMessage(ctx, testEngineEvent()))
	require.NoError(t, eng.ProcessMessage(ctx, testEngineEvent()))
	assert.Equal(t, []string{"warn:once"}, client.calls, "second event inside the window must be suppressed")
}

func TestProcessMessageNoScopeIsNoop(t *testing.T) {
	eng, client, directory := newTestEngine(t, []types.RuleRecord{warnRule("r1", 1, "x")})

	evt := testEngineEvent()
	evt.ScopeID = ""
	require.NoError(t, eng.ProcessMessage(context.Background(), evt))
	assert.Empty(t, client.calls)
	assert.Zero(t, directory.calls)
}

func TestProcessMessageFeatureDisabled(t *testing.T) {
	fetcher := &fakeFetcher{}
	client := &recorderClient{}
	logger := zap.NewNop()
	eng := New(logger,
		NewRuleCache(fetcher, logger, time.Minute),
		NewMemCooldownStore(),
		&fakeDirectory{actor: testEngineActor()},
		NewActionExecutor(client, logger),
		&fakeFlags{enabled: false})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Empty(t, client.calls)
	assert.Zero(t, fetcher.calls, "a disabled scope must not hit the store")
}

func TestProcessMessageFailsClosed(t *testing.T) {
	t.Run("flag lookup error", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		client := &recorderClient{}
		logger := zap.NewNop()
		eng := New(logger,
			NewRuleCache(fetcher, logger, time.Minute),
			NewMemCooldownStore(),
			&fakeDirectory{actor: testEngineActor()},
			NewActionExecutor(client, logger),
			&fakeFlags{err: fmt.Errorf("flag store down")})

		require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
		assert.Empty(t, client.calls)
	})

	t.Run("rule fetch error", func(t *testing.T) {
		fetcher := &fakeFetcher{err: fmt.Errorf("store down")}
		client := &recorderClient{}
		logger := zap.NewNop()
		eng := New(logger,
			NewRuleCache(fetcher, logger, time.Minute),
			NewMemCooldownStore(),
			&fakeDirectory{actor: testEngineActor()},
			NewActionExecutor(client, logger),
			&fakeFlags{enabled: true})

		require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
		assert.Empty(t, client.calls)
	})

	t.Run("directory error", func(t *testing.T) {
		eng, client, directory := newTestEngine(t, []types.RuleRecord{warnRule("r1", 1, "x")})
		directory.err = fmt.Errorf("gateway timeout")

		require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
		assert.Empty(t, client.calls)
	})
}

func TestProcessMessageActorResolvedOnce(t *testing.T) {
	eng, _, directory := newTestEngine(t, []types.RuleRecord{
		warnRule("r1", 1, "a"),
		warnRule("r2", 2, "b"),
		warnRule("r3", 3, "c"),
	})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Equal(t, 1, directory.calls, "the actor lookup must happen once per event")
}

func TestActionFailureIsolation(t *testing.T) {
	rec := record("r1", 1)
	rec.Actions = `[{"type":"warn","params":{"reason":"fails"}},{"type":"direct_message","params":{"text":"heads up"}}]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})
	client.failWarn = true

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Equal(t, []string{"warn:fails", "dm:heads up"}, client.calls,
		"a failing action must not abort the rest of the list")
}

func TestUnknownActionIsSkipped(t *testing.T) {
	rec := record("r1", 1)
	rec.Actions = `[{"type":"summon_mods"},{"type":"warn","params":{"reason":"still runs"}}]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Equal(t, []string{"warn:still runs"}, client.calls)
}

func TestTimeoutDefaultDuration(t *testing.T) {
	rec := record("r1", 1)
	rec.Actions = `[{"type":"timeout"}]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Equal(t, []string{fmt.Sprintf("timeout:%s", defaultActionTimeout)}, client.calls)
}

func TestAuditLogAction(t *testing.T) {
	rec := record("r1", 1)
	rec.Name = "audit me"
	rec.Actions = `[{"type":"audit_log"}]`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	require.Len(t, client.audits, 1)

	entry := client.audits[0]
	assert.Equal(t, "scope-1", entry.ScopeID)
	assert.Equal(t, types.RuleID("r1"), entry.RuleID)
	assert.Equal(t, "audit me", entry.RuleName)
	assert.Equal(t, "actor-1", entry.ActorID)
	assert.NotEmpty(t, entry.AuditID)
	assert.Contains(t, entry.Summary, "audit me")
}

func TestProcessMessageNonMatchingRule(t *testing.T) {
	rec := warnRule("r1", 1, "never")
	rec.Conditions = `{"operator":"and","children":[{"field":"message.text","operator":"contains","operand":"absent phrase"}]}`
	eng, client, _ := newTestEngine(t, []types.RuleRecord{rec})

	require.NoError(t, eng.ProcessMessage(context.Background(), testEngineEvent()))
	assert.Empty(t, client.calls)
}

func TestInvalidateScopeForcesRefetch(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string][]types.RuleRecord{
		"scope-1|on_create": {warnRule("r1", 1, "x")},
	}}
	client := &recorderClient{}
	logger := zap.NewNop()
	eng := New(logger,
		NewRuleCache(fetcher, logger, time.Minute),
		NewMemCooldownStore(),
		&fakeDirectory{actor: testEngineActor()},
		NewActionExecutor(client, logger),
		&fakeFlags{enabled: true})

	ctx := context.Background()
	require.NoError(t, eng.ProcessMessage(ctx, testEngineEvent()))
	eng.InvalidateScope("scope-1")
	require.NoError(t, eng.ProcessMessage(ctx, testEngineEvent()))
	assert.Equal(t, 2, fetcher.calls)
}
