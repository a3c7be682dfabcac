package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"henkbot/pkg/config"
	"henkbot/pkg/message"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Bot: config.BotConfig{
			HomeChatID:        -100,
			AdminIDs:          []int64{42, 7},
			EngageProbability: 0.7,
			DecaySchedule:     "@every 1m",
			DecayStep:         1,
		},
		Storage: config.StorageConfig{
			MessagesPath: filepath.Join(t.TempDir(), "messages.jsonl"),
			QueueSize:    8,
		},
	}
}

func TestEnabledAdapterRequiresTelegram(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := enabledAdapter(cfg, nil); err == nil {
		t.Fatal("expected error when telegram is disabled")
	}

	cfg.Telegram.Enabled = true
	if _, err := enabledAdapter(cfg, nil); err == nil {
		t.Fatal("expected error when telegram token is missing")
	}
}

func TestNewAppPersistsMessages(t *testing.T) {
	cfg := testConfig(t)

	application, err := newApp(cfg, nopSender{}, slog.New(slog.DiscardHandler), appOptions{Persist: true})
	if err != nil {
		t.Fatalf("newApp error: %v", err)
	}

	raw := message.RawEvent{
		UpdateID:    1,
		MessageID:   1,
		ChatID:      -100,
		ChatType:    "group",
		ContentType: message.ContentTypeText,
		Text:        "goedemorgen",
		From:        &message.Sender{ID: 7, FirstName: "Alex"},
		Date:        1700000000,
	}
	if err := application.bot.OnMessage(context.Background(), raw); err != nil {
		t.Fatalf("OnMessage error: %v", err)
	}

	// Close drains the writer queue.
	application.Close()

	content, err := os.ReadFile(cfg.Storage.MessagesPath)
	if err != nil {
		t.Fatalf("read message log: %v", err)
	}
	if !strings.Contains(string(content), "goedemorgen") {
		t.Fatalf("message log = %q, want the message text", content)
	}
}

func TestNewAppWithoutPersistence(t *testing.T) {
	cfg := testConfig(t)

	application, err := newApp(cfg, nopSender{}, nil, appOptions{})
	if err != nil {
		t.Fatalf("newApp error: %v", err)
	}
	application.Close()

	if _, err := os.Stat(cfg.Storage.MessagesPath); !os.IsNotExist(err) {
		t.Fatalf("expected no message log, stat error = %v", err)
	}
}

func TestNewAppRejectsBadResponses(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bot.ResponsesPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := newApp(cfg, nopSender{}, nil, appOptions{}); err == nil {
		t.Fatal("expected error for a missing responses file")
	}
}

func TestNewAppRejectsUnknownAlwaysRespondAlias(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bot.ResponsesPath = filepath.Join(t.TempDir(), "responses.yaml")
	table := "always_respond: Henkie\ntopics:\n  - {id: name, aliases: [henk], responses: [Ja?]}\n"
	if err := os.WriteFile(cfg.Bot.ResponsesPath, []byte(table), 0o600); err != nil {
		t.Fatalf("write responses: %v", err)
	}

	_, err := newApp(cfg, nopSender{}, nil, appOptions{})
	if err == nil || !strings.Contains(err.Error(), "always_respond") {
		t.Fatalf("newApp error = %v, want always_respond error", err)
	}

	var out bytes.Buffer
	if err := runCheck(cfg, &out); err == nil {
		t.Fatal("expected check to reject the table")
	}
}

func TestRunCheckPrintsRegistries(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	if err := runCheck(cfg, &out); err != nil {
		t.Fatalf("runCheck error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"responses:  built-in",
		"commands:   /help /ping /say /quit /reload /mood",
		"callbacks:  mood:",
		"admins:     7,42",
		"home chat:  -100",
		"always:     henk",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("check output missing %q:\n%s", want, got)
		}
	}
}

func TestConsoleOptionsFallBackToConfig(t *testing.T) {
	originalChat, originalSender := consoleChatID, consoleSenderID
	t.Cleanup(func() {
		consoleChatID, consoleSenderID = originalChat, originalSender
	})

	cfg := testConfig(t)
	consoleChatID, consoleSenderID = 0, 0
	opts := consoleOptions(cfg)
	if opts.ChatID != -100 || opts.SenderID != 42 {
		t.Fatalf("options = %#v, want home chat and first admin", opts)
	}

	consoleChatID, consoleSenderID = 5, 9
	opts = consoleOptions(cfg)
	if opts.ChatID != 5 || opts.SenderID != 9 {
		t.Fatalf("options = %#v, want flag values", opts)
	}
}

func TestDisplayOrNone(t *testing.T) {
	t.Parallel()

	if got := displayOrNone("  "); got != "none" {
		t.Fatalf("displayOrNone blank = %q, want none", got)
	}
	if got := displayOrNone("1,2"); got != "1,2" {
		t.Fatalf("displayOrNone = %q, want 1,2", got)
	}
}
