package message

import (
	"errors"
	"time"
)

// ContentTypeText is the transport content type of plain text messages.
const ContentTypeText = "text"

// ErrMissingDate reports an inbound event without its creation time.
var ErrMissingDate = errors.New("event has no date")

// ContentKind tells whether an event carries textual content.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentNonText
)

func (k ContentKind) String() string {
	if k == ContentText {
		return "text"
	}

	return "non_text"
}

// ChatKind classifies the conversation an event belongs to.
type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatGroup
	ChatChannel
)

func (k ChatKind) String() string {
	switch k {
	case ChatGroup:
		return "group"
	case ChatChannel:
		return "channel"
	default:
		return "private"
	}
}

// ChatKindOf maps a transport chat type onto a ChatKind.
//
// Supergroups are groups; unknown types are treated as private chats.
func ChatKindOf(chatType string) ChatKind {
	switch chatType {
	case "group", "supergroup":
		return ChatGroup
	case "channel":
		return ChatChannel
	default:
		return ChatPrivate
	}
}

// Sender identifies the user an event originates from.
type Sender struct {
	ID        int64
	FirstName string
}

// RawEvent is one inbound chat event as delivered by a transport adapter.
type RawEvent struct {
	UpdateID    int
	MessageID   int
	ChatID      int64
	ChatType    string
	ContentType string
	Text        string
	From        *Sender
	// Date is the unix creation time; zero means the transport did not supply it.
	Date int64
}

// Callback is a follow-up event produced by interactive content the bot sent
// earlier, such as an inline button press.
type Callback struct {
	ID        string
	Data      string
	FromID    int64
	FromName  string
	ChatID    int64
	MessageID int
}

// Message is the canonical record of one inbound event.
//
// All fields are fixed by Normalize except CommandArgument, which the
// dispatcher assigns once when a command matches.
type Message struct {
	ContentKind     ContentKind
	ContentType     string
	ChatID          int64
	ChatKind        ChatKind
	MessageID       int
	RawText         string
	NormalisedText  string
	SenderID        int64
	SenderName      string
	Timestamp       time.Time
	CommandArgument string
}

// IsText reports whether the message carries textual content.
func (m *Message) IsText() bool {
	return m != nil && m.ContentKind == ContentText
}
