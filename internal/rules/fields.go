// internal/rules/fields.go
package rules

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Field extraction for rule evaluation.
 *
 * Maps a fixed field vocabulary to typed values derived from an event and its
 * pre-resolved actor. Extraction is a pure function: no I/O, no side effects,
 * and deterministic for a fixed (event, actor) pair. Any field that would
 * require external state (role membership, account metadata) must be resolved
 * into the Actor by the orchestrator before evaluation starts.
 *
 * Vocabulary groups:
 *   - message.*: raw/normalized text plus counts derived from content
 *   - actor.*: identity, ages, role set, bot flag
 *   - channel.*: location id/name/nsfw
 *
 * Unknown field names return an Absent value; the evaluator decides what an
 * absent field means for each operator.
 *
 * Age fields are computed against the event timestamp rather than wall-clock
 * time so repeated extraction of the same event yields the same value.
 */

// Field vocabulary. Stored rules reference fields by these names.
const (
	FieldMessageText            = "message.text"
	FieldMessageNormalized      = "message.normalized"
	FieldMessageLength          = "message.length"
	FieldMessageWordCount       = "message.word_count"
	FieldMessageMentionCount    = "message.mention_count"
	FieldMessageEmojiCount      = "message.emoji_count"
	FieldMessageLinkCount       = "message.link_count"
	FieldMessageAttachmentCount = "message.attachment_count"
	FieldMessageHasEmbed        = "message.has_embed"
	FieldMessageAllCaps         = "message.all_caps"
	FieldMessageCapsRatio       = "message.caps_ratio"
	FieldMessageStickerCount    = "message.sticker_count"

	FieldActorID             = "actor.id"
	FieldActorUsername       = "actor.username"
	FieldActorDisplayName    = "actor.display_name"
	FieldActorAccountAgeDays = "actor.account_age_days"
	FieldActorMemberAgeDays  = "actor.membership_age_days"
	FieldActorRoles          = "actor.roles"
	FieldActorIsBot          = "actor.is_bot"

	FieldChannelID   = "channel.id"
	FieldChannelName = "channel.name"
	FieldChannelNSFW = "channel.nsfw"
)

var (
	// Custom platform emoji take the form <:name:123> or <a:name:123>.
	customEmojiPattern = regexp.MustCompile(`<a?:[A-Za-z0-9_~]+:[0-9]+>`)
	linkPattern        = regexp.MustCompile(`https?://\S+`)
)

// Extract resolves a field name to a typed value for the given event and
// actor. Unknown field names return an Absent value.
func Extract(field string, evt *types.Event, actor *types.Actor) types.Value {
	switch field {
	case FieldMessageText:
		return types.StringValue(evt.Content)
	case FieldMessageNormalized:
		return types.StringValue(normalizeText(evt.Content))
	case FieldMessageLength:
		return types.NumberValue(float64(len([]rune(evt.Content))))
	case FieldMessageWordCount:
		return types.NumberValue(float64(len(strings.Fields(evt.Content))))
	case FieldMessageMentionCount:
		return types.NumberValue(float64(evt.MentionCount))
	case FieldMessageEmojiCount:
		return types.NumberValue(float64(countEmoji(evt.Content)))
	case FieldMessageLinkCount:
		return types.NumberValue(float64(len(linkPattern.FindAllString(evt.Content, -1))))
	case FieldMessageAttachmentCount:
		return types.NumberValue(float64(evt.AttachmentCount))
	case FieldMessageHasEmbed:
		return types.BoolValue(evt.EmbedCount > 0)
	case FieldMessageAllCaps:
		ratio, letters := capsRatio(evt.Content)
		return types.BoolValue(letters > 0 && ratio == 1.0)
	case FieldMessageCapsRatio:
		ratio, _ := capsRatio(evt.Content)
		return types.NumberValue(ratio)
	case FieldMessageStickerCount:
		return types.NumberValue(float64(evt.StickerCount))

	case FieldActorID:
		return types.StringValue(actor.ID)
	case FieldActorUsername:
		return types.StringValue(actor.Username)
	case FieldActorDisplayName:
		return types.StringValue(actor.DisplayName)
	case FieldActorAccountAgeDays:
		return types.NumberValue(ageDays(actor.AccountCreatedAt, evt.Timestamp))
	case FieldActorMemberAgeDays:
		return types.NumberValue(ageDays(actor.JoinedAt, evt.Timestamp))
	case FieldActorRoles:
		return types.SetValue(actor.RoleIDs)
	case FieldActorIsBot:
		return types.BoolValue(actor.IsBot)

	case FieldChannelID:
		return types.StringValue(evt.LocationID)
	case FieldChannelName:
		return types.StringValue(evt.LocationName)
	case FieldChannelNSFW:
		return types.BoolValue(evt.LocationNSFW)

	default:
		return types.Value{}
	}
}

// normalizeText lowercases content and collapses runs of whitespace to a
// single space, trimming the ends.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// capsRatio returns uppercase letters / total letters and the letter count.
// Ratio is 0 when the content has no letters.
func capsRatio(s string) (float64, int) {
	upper := 0
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

// countEmoji counts custom platform emoji plus unicode emoji runes.
func countEmoji(s string) int {
	n := len(customEmojiPattern.FindAllString(s, -1))
	for _, r := range s {
		if isEmojiRune(r) {
			n++
		}
	}
	return n
}

// isEmojiRune covers the common unicode emoji blocks. Modifier and
// zero-width-joiner sequences count per code point; close enough for
// threshold-style rules.
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, transport, supplemental
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	default:
		return false
	}
}

// ageDays returns whole days between start and the reference time.
// Zero or future start times yield 0.
func ageDays(start, ref time.Time) float64 {
	if start.IsZero() || start.After(ref) {
		return 0
	}
	return float64(int(ref.Sub(start).Hours() / 24))
}
