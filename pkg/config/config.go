package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	envConfigPath        = "HENK_CONFIG"
	envPrefix            = "HENK"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envAdminIDs          = "HENK_ADMIN_IDS"
)

// Config is the root runtime configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Bot      BotConfig      `mapstructure:"bot"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `mapstructure:"format"`
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// BotConfig holds the dispatch and engagement settings.
type BotConfig struct {
	// HomeChatID is the conversation /say relays to.
	HomeChatID int64   `mapstructure:"home_chat_id"`
	AdminIDs   []int64 `mapstructure:"admin_ids"`
	// EngageProbability is the chance the bot stays in conversation after a reply.
	EngageProbability float64 `mapstructure:"engage_probability"`
	// DecaySchedule is a cron spec such as "@every 1m".
	DecaySchedule string `mapstructure:"decay_schedule"`
	DecayStep     int    `mapstructure:"decay_step"`
	// ResponsesPath is the trigger table file; empty uses the built-in table.
	ResponsesPath string `mapstructure:"responses_path"`
}

// StorageConfig configures the message log.
type StorageConfig struct {
	// MessagesPath is the JSONL message log; empty disables storage.
	MessagesPath string `mapstructure:"messages_path"`
	QueueSize    int    `mapstructure:"queue_size"`
}

// GatewayConfig configures the health server and the event loop supervisor.
type GatewayConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	RestartBackoffSeconds int    `mapstructure:"restart_backoff_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allow_from", []string{})

	v.SetDefault("bot.home_chat_id", 0)
	v.SetDefault("bot.admin_ids", []int64{})
	v.SetDefault("bot.engage_probability", 0.7)
	v.SetDefault("bot.decay_schedule", "@every 1m")
	v.SetDefault("bot.decay_step", 1)
	v.SetDefault("bot.responses_path", "")

	v.SetDefault("storage.messages_path", "data/messages.jsonl")
	v.SetDefault("storage.queue_size", 256)

	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 18790)
	v.SetDefault("gateway.restart_backoff_seconds", 5)

	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.add_source", false)
}

// LoadConfig resolves the config file, reads it with defaults and HENK_*
// environment bindings, and applies the explicit environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile reads one config file. JSON and YAML are accepted.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the bot cannot start with.
func (c *Config) Validate() error {
	var errs []error

	p := c.Bot.EngageProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("bot.engage_probability %v must be within [0, 1]", p))
	}
	if c.Bot.DecayStep < 0 {
		errs = append(errs, errors.New("bot.decay_step must not be negative"))
	}
	if strings.TrimSpace(c.Bot.DecaySchedule) == "" {
		errs = append(errs, errors.New("bot.decay_schedule is required"))
	}
	if c.Storage.QueueSize < 0 {
		errs = append(errs, errors.New("storage.queue_size must not be negative"))
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d is out of range", c.Gateway.Port))
	}
	if c.Gateway.RestartBackoffSeconds < 0 {
		errs = append(errs, errors.New("gateway.restart_backoff_seconds must not be negative"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if rawAdmins := strings.TrimSpace(os.Getenv(envAdminIDs)); rawAdmins != "" {
		ids, err := parseIDs(parseCSV(rawAdmins))
		if err != nil {
			return fmt.Errorf("%s: %w", envAdminIDs, err)
		}
		cfg.Bot.AdminIDs = ids
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", value, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is HENK_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config file not found (checked %s)", strings.Join(candidates, ", "))
}
