package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"henkbot/pkg/channel/console"
	"henkbot/pkg/config"
	"henkbot/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	consoleChatID   int64
	consoleSenderID int64
	consoleName     string
	consoleLogFile  string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot in the terminal",
	Long:  "Runs Henk with a local terminal chat instead of Telegram. Logs go to a file so they do not draw over the chat.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, closer, err := logger.NewFile(cfg.Logging, consoleLogFile)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		defer closer.Close()
		log := appLogger.With("component", "cmd.console")

		adapter := console.NewAdapter(consoleOptions(cfg), appLogger)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := newApp(cfg, adapter, appLogger, appOptions{Persist: false, Shutdown: stop})
		if err != nil {
			fmt.Printf("failed to initialize bot: %v\n", err)
			return
		}
		defer application.Close()

		svc, err := application.service(adapter, true, appLogger)
		if err != nil {
			fmt.Printf("failed to initialize console: %v\n", err)
			return
		}

		if err := svc.Run(runCtx); err != nil {
			log.Error("Console failed", "error", err)
			fmt.Printf("console failed: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Int64Var(&consoleChatID, "chat-id", 0, "chat id to talk in (default: bot.home_chat_id)")
	consoleCmd.Flags().Int64Var(&consoleSenderID, "sender-id", 0, "sender id to talk as (default: first admin)")
	consoleCmd.Flags().StringVar(&consoleName, "name", "operator", "first name to talk as")
	consoleCmd.Flags().StringVar(&consoleLogFile, "log-file", "data/console.log", "file that receives log output")
}

// consoleOptions fills unset flags from config so the operator talks in the
// home chat as the first admin.
func consoleOptions(cfg *config.Config) console.Options {
	opts := console.Options{
		ChatID:     consoleChatID,
		SenderID:   consoleSenderID,
		SenderName: consoleName,
	}
	if opts.ChatID == 0 {
		opts.ChatID = cfg.Bot.HomeChatID
	}
	if opts.SenderID == 0 && len(cfg.Bot.AdminIDs) > 0 {
		opts.SenderID = cfg.Bot.AdminIDs[0]
	}

	return opts
}
