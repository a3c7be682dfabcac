package henk

import (
	"context"
	"log/slog"
	"strings"

	"henkbot/pkg/channel"
	"henkbot/pkg/message"
)

const (
	moodPrefix = "mood:"
	moodWake   = moodPrefix + "wake"
	moodHush   = moodPrefix + "hush"

	notAllowedNotice = "Niet toegestaan."
)

// Mood shows the engagement state and lets admins force it through inline
// buttons.
type Mood struct {
	log *slog.Logger
}

func (m *Mood) Name() string { return "mood" }

func (m *Mood) Initialise(b *Bot) error {
	m.log = b.Log("henk.mood")
	return nil
}

func (m *Mood) RegisterCommands(b *Bot) error {
	if err := b.AddCommand("mood", m.show); err != nil {
		return err
	}

	return b.AddCallback(moodPrefix, m.press)
}

func moodText(active bool) string {
	if active {
		return "Ik ben in de stemming om te kletsen."
	}

	return "Ik hou me even stil."
}

func moodButtons() []channel.Button {
	return []channel.Button{
		{Text: "Wakker worden", Data: moodWake},
		{Text: "Stil zijn", Data: moodHush},
	}
}

func (m *Mood) show(ctx context.Context, b *Bot, msg *message.Message) string {
	if _, err := b.SendKeyboard(ctx, msg.ChatID, moodText(b.Engagement().Active()), moodButtons()); err != nil {
		m.log.Error("Failed to send mood keyboard", "chat_id", msg.ChatID, "error", err)
	}

	return ""
}

func (m *Mood) press(ctx context.Context, b *Bot, cb message.Callback) {
	if !b.IsAdmin(cb.FromID) {
		if err := b.AnswerCallback(ctx, cb.ID, notAllowedNotice); err != nil {
			m.log.Warn("Failed to answer callback", "callback_id", cb.ID, "error", err)
		}
		return
	}

	switch strings.TrimPrefix(cb.Data, moodPrefix) {
	case "wake":
		b.Engagement().SetActive(true)
	case "hush":
		b.Engagement().SetActive(false)
	default:
		m.log.Error("Unknown mood action", "data", cb.Data)
		if err := b.AnswerCallback(ctx, cb.ID, ""); err != nil {
			m.log.Warn("Failed to answer callback", "callback_id", cb.ID, "error", err)
		}
		return
	}

	active := b.Engagement().Active()
	m.log.Info("Mood changed", "active", active, "sender_id", cb.FromID)

	handle := channel.MessageHandle{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := b.EditText(ctx, handle, moodText(active)); err != nil {
		m.log.Warn("Failed to update mood message", "chat_id", cb.ChatID, "error", err)
	}
	if err := b.AnswerCallback(ctx, cb.ID, ""); err != nil {
		m.log.Warn("Failed to answer callback", "callback_id", cb.ID, "error", err)
	}
}
