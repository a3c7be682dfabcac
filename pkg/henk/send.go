package henk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"henkbot/pkg/channel"
)

// MaxMessageLength is the platform cap for one outbound text.
const MaxMessageLength = 4096

var errEmptyMessage = errors.New("message is empty")

// Send delivers text to chatID, split into platform-sized chunks. The whole
// reply goes out under the send lock so replies never interleave. It returns
// the handle of the last chunk.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) (channel.MessageHandle, error) {
	chunks := SplitMessage(text, MaxMessageLength)
	if len(chunks) == 0 {
		return channel.MessageHandle{}, errEmptyMessage
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	var handle channel.MessageHandle
	for i, chunk := range chunks {
		var err error
		handle, err = b.sender.Send(ctx, chatID, chunk)
		if err != nil {
			return handle, fmt.Errorf("send chunk %d/%d to chat %d: %w", i+1, len(chunks), chatID, err)
		}
	}

	return handle, nil
}

// SendKeyboard sends text with an inline keyboard.
func (b *Bot) SendKeyboard(ctx context.Context, chatID int64, text string, buttons []channel.Button) (channel.MessageHandle, error) {
	if strings.TrimSpace(text) == "" {
		return channel.MessageHandle{}, errEmptyMessage
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	handle, err := b.sender.SendKeyboard(ctx, chatID, text, buttons)
	if err != nil {
		return handle, fmt.Errorf("send keyboard to chat %d: %w", chatID, err)
	}

	return handle, nil
}

// EditText replaces the text of a message the bot sent earlier.
func (b *Bot) EditText(ctx context.Context, handle channel.MessageHandle, text string) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	if err := b.sender.EditText(ctx, handle, text); err != nil {
		return fmt.Errorf("edit message %d in chat %d: %w", handle.MessageID, handle.ChatID, err)
	}

	return nil
}

// AnswerCallback acknowledges a callback query, optionally with a notice.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	if err := b.sender.AnswerCallback(ctx, callbackID, text); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}

	return nil
}

// SplitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline. Blank chunks are dropped.
func SplitMessage(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if nl := lastNewline(runes[:limit]); nl > 0 {
			cut = nl + 1
		}

		if chunk := strings.TrimRight(string(runes[:cut]), "\n"); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	if rest := string(runes); strings.TrimSpace(rest) != "" {
		chunks = append(chunks, rest)
	}

	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}

	return -1
}
