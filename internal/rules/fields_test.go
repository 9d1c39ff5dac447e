// internal/rules/fields_test.go
package rules

import (
	"math"
	"testing"
	"time"

	"github.com/guardhouse/guardhouse/internal/types"
)

func testEvent() *types.Event {
	return &types.Event{
		Kind:            types.TriggerMessageCreate,
		ScopeID:         "scope-1",
		LocationID:      "chan-1",
		LocationName:    "general",
		LocationNSFW:    false,
		ActorID:         "actor-1",
		Content:         "Hello WORLD, see https://example.com/a and http://example.org",
		MentionCount:    3,
		AttachmentCount: 2,
		StickerCount:    1,
		EmbedCount:      0,
		Timestamp:       time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func testActor() *types.Actor {
	return &types.Actor{
		ID:               "actor-1",
		Username:         "spammer99",
		DisplayName:      "Spammy",
		IsBot:            false,
		AccountCreatedAt: time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC),
		JoinedAt:         time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC),
		RoleIDs:          []string{"role-a", "role-b"},
	}
}

func TestExtractStringFields(t *testing.T) {
	evt := testEvent()
	actor := testActor()

	tests := []struct {
		field string
		want  string
	}{
		{FieldMessageText, evt.Content},
		{FieldMessageNormalized, "hello world, see https://example.com/a and http://example.org"},
		{FieldActorID, "actor-1"},
		{FieldActorUsername, "spammer99"},
		{FieldActorDisplayName, "Spammy"},
		{FieldChannelID, "chan-1"},
		{FieldChannelName, "general"},
	}
	for _, tt := range tests {
		v := Extract(tt.field, evt, actor)
		if v.Kind != types.ValueString {
			t.Errorf("%s: kind = %d, want string", tt.field, v.Kind)
			continue
		}
		if v.Str != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, v.Str, tt.want)
		}
	}
}

func TestExtractNumberFields(t *testing.T) {
	evt := testEvent()
	actor := testActor()

	tests := []struct {
		field string
		want  float64
	}{
		{FieldMessageLength, float64(len([]rune(evt.Content)))},
		{FieldMessageWordCount, 6},
		{FieldMessageMentionCount, 3},
		{FieldMessageLinkCount, 2},
		{FieldMessageAttachmentCount, 2},
		{FieldMessageStickerCount, 1},
		{FieldActorAccountAgeDays, 10},
		{FieldActorMemberAgeDays, 2},
	}
	for _, tt := range tests {
		v := Extract(tt.field, evt, actor)
		if v.Kind != types.ValueNumber {
			t.Errorf("%s: kind = %d, want number", tt.field, v.Kind)
			continue
		}
		if v.Num != tt.want {
			t.Errorf("%s = %v, want %v", tt.field, v.Num, tt.want)
		}
	}
}

func TestExtractBoolFields(t *testing.T) {
	evt := testEvent()
	actor := testActor()

	if v := Extract(FieldMessageHasEmbed, evt, actor); v.Bool {
		t.Error("has_embed should be false with zero embeds")
	}
	evt.EmbedCount = 1
	if v := Extract(FieldMessageHasEmbed, evt, actor); !v.Bool {
		t.Error("has_embed should be true with one embed")
	}
	if v := Extract(FieldActorIsBot, evt, actor); v.Bool {
		t.Error("is_bot should be false")
	}
	if v := Extract(FieldChannelNSFW, evt, actor); v.Bool {
		t.Error("channel.nsfw should be false")
	}
}

func TestExtractRoleSet(t *testing.T) {
	v := Extract(FieldActorRoles, testEvent(), testActor())
	if v.Kind != types.ValueSet {
		t.Fatalf("actor.roles kind = %d, want set", v.Kind)
	}
	if len(v.Set) != 2 || v.Set[0] != "role-a" || v.Set[1] != "role-b" {
		t.Errorf("actor.roles = %v", v.Set)
	}
}

func TestExtractUnknownFieldIsAbsent(t *testing.T) {
	v := Extract("message.no_such_field", testEvent(), testActor())
	if !v.Absent() {
		t.Errorf("unknown field should be absent, got kind %d", v.Kind)
	}
}

func TestCapsRatio(t *testing.T) {
	tests := []struct {
		content string
		ratio   float64
		allCaps bool
	}{
		{"THIS IS ALL CAPS SHOUTING", 1.0, true},
		{"Mixed Case Here", 3.0 / 13.0, false},
		{"all lower", 0, false},
		{"1234 !!", 0, false}, // no letters at all
		{"", 0, false},
	}
	for _, tt := range tests {
		evt := testEvent()
		evt.Content = tt.content
		v := Extract(FieldMessageCapsRatio, evt, testActor())
		if math.Abs(v.Num-tt.ratio) > 1e-9 {
			t.Errorf("caps_ratio(%q) = %v, want %v", tt.content, v.Num, tt.ratio)
		}
		b := Extract(FieldMessageAllCaps, evt, testActor())
		if b.Bool != tt.allCaps {
			t.Errorf("all_caps(%q) = %v, want %v", tt.content, b.Bool, tt.allCaps)
		}
	}
}

func TestCountEmoji(t *testing.T) {
	tests := []struct {
		content string
		want    float64
	}{
		{"no emoji here", 0},
		{"<:smile:123456789>", 1},
		{"<a:wave:987654321> hey", 1},
		{"fire \U0001F525\U0001F525", 2},
		{"mixed <:x:1> and ❤", 2},
	}
	for _, tt := range tests {
		evt := testEvent()
		evt.Content = tt.content
		v := Extract(FieldMessageEmojiCount, evt, testActor())
		if v.Num != tt.want {
			t.Errorf("emoji_count(%q) = %v, want %v", tt.content, v.Num, tt.want)
		}
	}
}

func TestAgeDaysBounds(t *testing.T) {
	evt := testEvent()
	actor := testActor()

	// Unset account creation yields zero, not a huge number.
	actor.AccountCreatedAt = time.Time{}
	if v := Extract(FieldActorAccountAgeDays, evt, actor); v.Num != 0 {
		t.Errorf("zero creation time: age = %v, want 0", v.Num)
	}

	// Clock skew placing creation after the event also yields zero.
	actor.AccountCreatedAt = evt.Timestamp.Add(time.Hour)
	if v := Extract(FieldActorAccountAgeDays, evt, actor); v.Num != 0 {
		t.Errorf("future creation time: age = %v, want 0", v.Num)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	evt := testEvent()
	actor := testActor()
	for _, field := range []string{FieldMessageNormalized, FieldMessageCapsRatio, FieldActorAccountAgeDays} {
		a := Extract(field, evt, actor)
		b := Extract(field, evt, actor)
		if a.Kind != b.Kind || a.Str != b.Str || a.Num != b.Num || a.Bool != b.Bool {
			t.Errorf("%s: repeated extraction differs: %v vs %v", field, a, b)
		}
	}
}
