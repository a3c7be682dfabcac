package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"henkbot/pkg/channel"
	"henkbot/pkg/channel/telegram"
	"henkbot/pkg/config"
	"henkbot/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot on Telegram",
	Long:  "Runs Henk against Telegram long polling with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		adapter, err := enabledAdapter(cfg, appLogger)
		if err != nil {
			log.Error("Channel configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := newApp(cfg, adapter, appLogger, appOptions{Persist: true, Shutdown: stop})
		if err != nil {
			log.Error("Failed to initialize bot", "error", err)
			return
		}
		defer application.Close()

		svc, err := application.service(adapter, false, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Henk started", "channel", adapter.Name(), "commands", application.bot.Commands(), "admins", len(cfg.Bot.AdminIDs))
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
		log.Info("Henk stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapter(cfg *config.Config, log *slog.Logger) (channel.Adapter, error) {
	if !cfg.Telegram.Enabled {
		return nil, errors.New("telegram channel is disabled")
	}

	adapter, err := telegram.NewAdapter(cfg.Telegram, log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram channel: %w", err)
	}

	return adapter, nil
}
