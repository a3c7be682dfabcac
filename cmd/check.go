package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"henkbot/pkg/config"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and responses",
	Long:  "Loads the configuration and response table, builds the command and callback registries and prints them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		return runCheck(cfg, cmd.OutOrStdout())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cfg *config.Config, out io.Writer) error {
	application, err := newApp(cfg, nopSender{}, slog.New(slog.DiscardHandler), appOptions{})
	if err != nil {
		return err
	}
	defer application.Close()

	source := application.responses.Path()
	if source == "" {
		source = "built-in"
	}

	admins := make([]string, 0, len(cfg.Bot.AdminIDs))
	for _, id := range application.bot.AdminIDs() {
		admins = append(admins, strconv.FormatInt(id, 10))
	}

	commands := make([]string, 0, len(application.bot.Commands()))
	for _, keyword := range application.bot.Commands() {
		commands = append(commands, "/"+keyword)
	}

	fmt.Fprintf(out, "responses:  %s (%d topics)\n", source, len(application.responses.Current().Topics))
	fmt.Fprintf(out, "commands:   %s\n", strings.Join(commands, " "))
	fmt.Fprintf(out, "callbacks:  %s\n", strings.Join(application.bot.Callbacks(), " "))
	fmt.Fprintf(out, "admins:     %s\n", displayOrNone(strings.Join(admins, ",")))
	fmt.Fprintf(out, "home chat:  %d\n", application.bot.HomeChatID())
	fmt.Fprintf(out, "always:     %s\n", displayOrNone(application.responses.Current().AlwaysRespond))
	fmt.Fprintf(out, "engagement: p=%.2f step=%d schedule=%q\n", cfg.Bot.EngageProbability, cfg.Bot.DecayStep, cfg.Bot.DecaySchedule)

	return nil
}

func displayOrNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}

	return value
}
