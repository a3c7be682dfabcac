package henk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"henkbot/pkg/bus"
	"henkbot/pkg/message"
)

// OnMessage routes one inbound event. Only a malformed event yields an
// error; routing misses and send failures are logged and swallowed.
func (b *Bot) OnMessage(ctx context.Context, raw message.RawEvent) error {
	msg, err := message.Normalize(raw)
	if err != nil {
		b.log.Warn("Dropping malformed event", "update_id", raw.UpdateID, "chat_id", raw.ChatID, "error", err)
		b.publish(ctx, bus.EventMalformed, raw.ChatID, nil, err)
		return fmt.Errorf("normalize update %d: %w", raw.UpdateID, err)
	}

	b.publish(ctx, bus.EventMessageReceived, msg.ChatID, map[string]string{
		"content": msg.ContentKind.String(),
		"chat":    msg.ChatKind.String(),
	}, nil)

	if !msg.IsText() {
		b.engagement.Deactivate()
		b.log.Debug("Ignoring non-text message", "chat_id", msg.ChatID, "content_type", msg.ContentType)
		b.publish(ctx, bus.EventNonText, msg.ChatID, map[string]string{"content_type": msg.ContentType}, nil)
		return nil
	}

	if err := b.persister.Persist(ctx, *msg); err != nil {
		b.log.Warn("Failed to hand off message for storage", "chat_id", msg.ChatID, "error", err)
	}

	b.lastSender.Store(msg.SenderName)

	if strings.HasPrefix(msg.RawText, CommandPrefix) {
		b.dispatchCommand(ctx, msg)
		return nil
	}

	b.engage(ctx, msg)
	return nil
}

func (b *Bot) dispatchCommand(ctx context.Context, msg *message.Message) {
	keyword, argument := splitCommand(msg.RawText)

	handler, ok := b.commands.Lookup(keyword)
	if !ok {
		b.engagement.Deactivate()
		b.log.Info("Ignoring unknown command", "command", keyword, "chat_id", msg.ChatID, "sender_id", msg.SenderID)
		b.publish(ctx, bus.EventCommandUnknown, msg.ChatID, map[string]string{"command": keyword}, nil)
		return
	}

	msg.CommandArgument = argument
	reply := handler(ctx, b, msg)
	b.publish(ctx, bus.EventCommandHandled, msg.ChatID, map[string]string{"command": keyword}, nil)

	if strings.TrimSpace(reply) == "" {
		return
	}
	if _, err := b.Send(ctx, msg.ChatID, reply); err != nil {
		b.replyFailed(ctx, msg.ChatID, "command", err)
	}
}

// splitCommand returns the keyword of the leading "/token" and the trimmed
// text after it. A "@botname" suffix on the token is dropped.
func splitCommand(text string) (string, string) {
	token, argument := text, ""
	if end := strings.IndexFunc(text, unicode.IsSpace); end >= 0 {
		token, argument = text[:end], strings.TrimSpace(text[end:])
	}

	keyword := strings.TrimPrefix(token, CommandPrefix)
	if at := strings.IndexByte(keyword, '@'); at >= 0 {
		keyword = keyword[:at]
	}

	return keyword, argument
}

func (b *Bot) engage(ctx context.Context, msg *message.Message) {
	table := b.responses.Current()
	alias, topic, ok := table.Match(msg.NormalisedText)
	if !ok {
		return
	}

	payload := map[string]string{"topic": topic.ID, "alias": alias}
	if !b.engagement.Consider(topic.ID, table.IsAlwaysRespond(alias)) {
		b.log.Debug("Staying quiet", "topic", topic.ID, "alias", alias, "chat_id", msg.ChatID)
		b.publish(ctx, bus.EventEngagementSkipped, msg.ChatID, payload, nil)
		return
	}

	if _, err := b.Send(ctx, msg.ChatID, b.Pick(topic)); err != nil {
		b.replyFailed(ctx, msg.ChatID, "engagement", err)
		return
	}

	active := b.engagement.OnSend()
	payload["active"] = strconv.FormatBool(active)
	b.log.Debug("Replied unprompted", "topic", topic.ID, "alias", alias, "chat_id", msg.ChatID, "active", active)
	b.publish(ctx, bus.EventEngagementReplied, msg.ChatID, payload, nil)
}

func (b *Bot) replyFailed(ctx context.Context, chatID int64, path string, err error) {
	b.log.Error("Failed to send reply", "chat_id", chatID, "path", path, "error", err)
	b.publish(ctx, bus.EventReplyFailed, chatID, map[string]string{"path": path}, err)
}

// OnCallbackQuery routes a callback to the first registered prefix of its
// data. Callbacks come from buttons the bot made, so a miss is logged as an
// error.
func (b *Bot) OnCallbackQuery(ctx context.Context, cb message.Callback) error {
	prefix, handler, ok := b.callbacks.MatchPrefix(cb.Data)
	if !ok {
		b.log.Error("Unmatched callback query", "data", cb.Data, "chat_id", cb.ChatID, "sender_id", cb.FromID)
		b.publish(ctx, bus.EventCallbackUnmatched, cb.ChatID, map[string]string{"data": cb.Data}, nil)
		return nil
	}

	handler(ctx, b, cb)
	b.publish(ctx, bus.EventCallbackHandled, cb.ChatID, map[string]string{"prefix": prefix, "data": cb.Data}, nil)
	return nil
}
