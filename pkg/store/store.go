package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"henkbot/pkg/message"
)

// Persister durably records normalized messages. Records are never read back
// by the bot.
type Persister interface {
	Persist(ctx context.Context, msg message.Message) error
}

// Record is the stored form of one message.
type Record struct {
	ID          string    `json:"id"`
	ChatID      int64     `json:"chat_id"`
	ChatKind    string    `json:"chat_kind"`
	MessageID   int       `json:"message_id,omitempty"`
	SenderID    int64     `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	ContentType string    `json:"content_type"`
	Text        string    `json:"text,omitempty"`
	Normalised  string    `json:"normalised,omitempty"`
	SentAt      time.Time `json:"sent_at"`
	StoredAt    time.Time `json:"stored_at"`
}

// NewRecord converts msg into a Record with a fresh id.
func NewRecord(msg message.Message, now time.Time) Record {
	return Record{
		ID:          "msg_" + uuid.NewString(),
		ChatID:      msg.ChatID,
		ChatKind:    msg.ChatKind.String(),
		MessageID:   msg.MessageID,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		ContentType: msg.ContentType,
		Text:        msg.RawText,
		Normalised:  msg.NormalisedText,
		SentAt:      msg.Timestamp,
		StoredAt:    now.UTC(),
	}
}

// Discard drops every message.
type Discard struct{}

func (Discard) Persist(context.Context, message.Message) error { return nil }
