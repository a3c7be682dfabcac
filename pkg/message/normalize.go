package message

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// emojiPattern covers the pictograph, transport and symbol blocks plus the
// emoji presentation selector that trails many of them.
var emojiPattern = regexp.MustCompile(`[\x{1F300}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{FE0F}]+`)

// Normalize converts one raw event into a Message.
//
// Missing sender fields fall back to the zero identity. A missing date makes
// the event malformed.
func Normalize(ev RawEvent) (*Message, error) {
	if ev.Date <= 0 {
		return nil, fmt.Errorf("normalize chat %d message %d: %w", ev.ChatID, ev.MessageID, ErrMissingDate)
	}

	msg := &Message{
		ContentKind: ContentNonText,
		ContentType: ev.ContentType,
		ChatID:      ev.ChatID,
		ChatKind:    ChatKindOf(ev.ChatType),
		MessageID:   ev.MessageID,
		Timestamp:   time.Unix(ev.Date, 0).UTC(),
	}

	if ev.ContentType == ContentTypeText {
		msg.ContentKind = ContentText
		msg.RawText = ev.Text
		msg.NormalisedText = NormaliseText(ev.Text)
	}

	if ev.From != nil {
		msg.SenderID = ev.From.ID
		msg.SenderName = ev.From.FirstName
	}

	return msg, nil
}

// NormaliseText lowercases s, removes emoji and collapses whitespace.
//
//	" Hoi   Henk 👋" -> "hoi henk"
func NormaliseText(s string) string {
	r := strings.ToLower(s)
	r = emojiPattern.ReplaceAllString(r, "")
	return strings.Join(strings.Fields(r), " ")
}

// PrepareQuery is the matching form of s used for trigger phrases: the
// normalised text without question or exclamation marks, comma pauses or a
// closing full stop. It is never stored or displayed.
func PrepareQuery(s string) string {
	r := NormaliseText(s)
	r = strings.ReplaceAll(r, ", ", " ")
	r = strings.ReplaceAll(r, "?", "")
	r = strings.ReplaceAll(r, "!", "")
	r = strings.TrimSpace(r)
	r = strings.TrimSuffix(r, ".")
	return strings.Join(strings.Fields(r), " ")
}
