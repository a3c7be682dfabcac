package message

import (
	"errors"
	"testing"
	"time"
)

func TestNormaliseText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		" Hoi   Henk ":       "hoi henk",
		"GOEDEMORGEN 🌞!":     "goedemorgen !",
		"rocket🚀launch":      "rocketlaunch",
		"tab\tand\nnewline": "tab and newline",
		"❤️ love":            "love",
		"":                   "",
	}

	for input, want := range cases {
		if got := NormaliseText(input); got != want {
			t.Fatalf("NormaliseText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormaliseTextIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"  Hallo   Daar  ",
		"a 😀 b",
		"☀ ☁ ✈ mixed ✅ Symbols",
		"ÀÉÎ Ünïcode",
		"\t\n ",
		"already normal",
	}

	for _, input := range inputs {
		once := NormaliseText(input)
		if twice := NormaliseText(once); twice != once {
			t.Fatalf("NormaliseText not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestPrepareQuery(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Hoi, Henk!":         "hoi henk",
		"Hoe gaat het?":      "hoe gaat het",
		"Goedemorgen.":       "goedemorgen",
		"wat?! echt.":        "wat echt",
		"  ok ,  prima . ":   "ok prima",
		"henk, henk, henk..": "henk henk henk.",
	}

	for input, want := range cases {
		if got := PrepareQuery(input); got != want {
			t.Fatalf("PrepareQuery(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeTextEvent(t *testing.T) {
	t.Parallel()

	msg, err := Normalize(RawEvent{
		MessageID:   7,
		ChatID:      -100,
		ChatType:    "supergroup",
		ContentType: ContentTypeText,
		Text:        "  /Ping  Now ",
		From:        &Sender{ID: 42, FirstName: "Alex"},
		Date:        1700000000,
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if !msg.IsText() {
		t.Fatal("expected text message")
	}
	if msg.ChatKind != ChatGroup {
		t.Fatalf("chat kind = %s, want group", msg.ChatKind)
	}
	if msg.RawText != "  /Ping  Now " {
		t.Fatalf("raw text = %q", msg.RawText)
	}
	if msg.NormalisedText != "/ping now" {
		t.Fatalf("normalised text = %q, want %q", msg.NormalisedText, "/ping now")
	}
	if msg.SenderID != 42 || msg.SenderName != "Alex" {
		t.Fatalf("sender = %d/%q, want 42/Alex", msg.SenderID, msg.SenderName)
	}
	if !msg.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("timestamp = %v", msg.Timestamp)
	}
	if msg.CommandArgument != "" {
		t.Fatalf("command argument = %q, want empty", msg.CommandArgument)
	}
}

func TestNormalizeNonTextEvent(t *testing.T) {
	t.Parallel()

	msg, err := Normalize(RawEvent{ChatID: 1, ChatType: "private", ContentType: "photo", Text: "caption", Date: 1})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if msg.IsText() {
		t.Fatal("expected non-text message")
	}
	if msg.RawText != "" || msg.NormalisedText != "" {
		t.Fatalf("text fields = %q/%q, want empty", msg.RawText, msg.NormalisedText)
	}
}

func TestNormalizeDefaultsMissingSender(t *testing.T) {
	t.Parallel()

	msg, err := Normalize(RawEvent{ChatID: 5, ChatType: "channel", ContentType: ContentTypeText, Text: "post", Date: 10})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if msg.SenderID != 0 || msg.SenderName != "" {
		t.Fatalf("sender = %d/%q, want sentinel", msg.SenderID, msg.SenderName)
	}
	if msg.ChatKind != ChatChannel {
		t.Fatalf("chat kind = %s, want channel", msg.ChatKind)
	}
}

func TestNormalizeRejectsMissingDate(t *testing.T) {
	t.Parallel()

	_, err := Normalize(RawEvent{ChatID: 5, ContentType: ContentTypeText, Text: "hi"})
	if !errors.Is(err, ErrMissingDate) {
		t.Fatalf("error = %v, want %v", err, ErrMissingDate)
	}
}

func TestChatKindOf(t *testing.T) {
	t.Parallel()

	cases := map[string]ChatKind{
		"private":    ChatPrivate,
		"group":      ChatGroup,
		"supergroup": ChatGroup,
		"channel":    ChatChannel,
		"":           ChatPrivate,
	}
	for input, want := range cases {
		if got := ChatKindOf(input); got != want {
			t.Fatalf("ChatKindOf(%q) = %s, want %s", input, got, want)
		}
	}
}
