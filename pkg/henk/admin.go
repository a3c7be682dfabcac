package henk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"henkbot/pkg/message"
)

const (
	helpSummary     = "Ik ben Henk. Noem mijn naam of praat over koffie en kaarten, dan doe ik misschien mee."
	pongReply       = "pong"
	farewellReply   = "Doei!"
	reloadRejection = "Dat mag jij niet."
)

// Admin provides the operator commands: help, ping, say, quit and reload.
type Admin struct {
	log *slog.Logger
}

func (a *Admin) Name() string { return "admin" }

func (a *Admin) Initialise(b *Bot) error {
	a.log = b.Log("henk.admin")
	if len(b.admins) == 0 {
		a.log.Warn("No admin ids configured, admin commands are disabled")
	}
	if b.HomeChatID() == 0 {
		a.log.Warn("No home chat configured, /say has nowhere to relay")
	}

	return nil
}

func (a *Admin) RegisterCommands(b *Bot) error {
	commands := []struct {
		keyword string
		handler CommandHandler
	}{
		{"help", a.help},
		{"ping", a.ping},
		{"say", a.say},
		{"quit", a.quit},
		{"reload", a.reload},
	}

	for _, command := range commands {
		if err := b.AddCommand(command.keyword, command.handler); err != nil {
			return err
		}
	}

	return nil
}

func (a *Admin) help(_ context.Context, b *Bot, _ *message.Message) string {
	keywords := b.Commands()
	for i, keyword := range keywords {
		keywords[i] = CommandPrefix + keyword
	}

	return helpSummary + "\n\nCommando's: " + strings.Join(keywords, ", ")
}

func (a *Admin) ping(context.Context, *Bot, *message.Message) string {
	return pongReply
}

func (a *Admin) say(ctx context.Context, b *Bot, msg *message.Message) string {
	if !b.IsAdmin(msg.SenderID) {
		a.log.Info("Ignoring /say from non-admin", "sender_id", msg.SenderID)
		return ""
	}
	if msg.CommandArgument == "" || b.HomeChatID() == 0 {
		return ""
	}

	if _, err := b.Send(ctx, b.HomeChatID(), msg.CommandArgument); err != nil {
		a.log.Error("Failed to relay message", "home_chat_id", b.HomeChatID(), "error", err)
	}

	return ""
}

func (a *Admin) quit(ctx context.Context, b *Bot, msg *message.Message) string {
	if !b.IsAdmin(msg.SenderID) {
		a.log.Info("Ignoring /quit from non-admin", "sender_id", msg.SenderID)
		return ""
	}

	if _, err := b.Send(ctx, msg.ChatID, farewellReply); err != nil {
		a.log.Warn("Failed to say goodbye", "chat_id", msg.ChatID, "error", err)
	}
	b.RequestShutdown()

	return ""
}

func (a *Admin) reload(_ context.Context, b *Bot, msg *message.Message) string {
	if !b.IsAdmin(msg.SenderID) {
		return reloadRejection
	}

	table, err := b.Responses().Reload()
	if err != nil {
		a.log.Error("Failed to reload responses", "path", b.Responses().Path(), "error", err)
		return fmt.Sprintf("Herladen mislukt, oude antwoorden blijven actief: %v", err)
	}

	a.log.Info("Reloaded responses", "path", b.Responses().Path(), "topics", len(table.Topics))
	return fmt.Sprintf("Antwoorden herladen: %d onderwerpen.", len(table.Topics))
}
