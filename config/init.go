package config

import (
	"log"
	"strconv"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	cron_config "github.com/customeros/mailnotify/internal/cron/config"
	"github.com/customeros/mailnotify/internal/enum"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/tracing"
)

// RequiredVariables are the four values the process refuses to start without.
var RequiredVariables = []string{
	"DISCORD_TOKEN",
	"DISCORD_USER_ID",
	"GMAIL_EMAIL",
	"GMAIL_APP_PASSWORD",
}

type Config struct {
	AppConfig            *AppConfig
	Logger               *logger.Config
	Tracing              *tracing.JaegerConfig
	Imap                 *ImapConfig
	Discord              *DiscordConfig
	Notifier             *NotifierConfig
	CursorDatabaseConfig *CursorDatabaseConfig
	LeaderElection       *LeaderElectionConfig
	Cron                 *cron_config.Config
}

func newConfig() *Config {
	return &Config{
		AppConfig:            &AppConfig{},
		Logger:               &logger.Config{},
		Tracing:              &tracing.JaegerConfig{},
		Imap:                 &ImapConfig{},
		Discord:              &DiscordConfig{},
		Notifier:             &NotifierConfig{},
		CursorDatabaseConfig: &CursorDatabaseConfig{},
		LeaderElection:       &LeaderElectionConfig{},
		Cron:                 &cron_config.Config{},
	}
}

func InitConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	return ParseConfig()
}

// ParseConfig reads the environment without touching .env files.
func ParseConfig() (*Config, error) {
	config := newConfig()

	if err := env.Parse(config); err != nil {
		return nil, mailnotify_errors.NewConfigurationError("", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks what the env tags cannot: required values that are set but
// empty, and values that must parse.
func (c *Config) Validate() error {
	required := map[string]string{
		"DISCORD_TOKEN":      c.Discord.BotToken,
		"DISCORD_USER_ID":    c.Discord.UserID,
		"GMAIL_EMAIL":        c.Imap.Email,
		"GMAIL_APP_PASSWORD": c.Imap.AppPassword,
	}
	for _, name := range RequiredVariables {
		if required[name] == "" {
			return mailnotify_errors.NewConfigurationError(name, mailnotify_errors.ErrMissingValue)
		}
	}

	if _, err := strconv.ParseUint(c.Discord.UserID, 10, 64); err != nil {
		return mailnotify_errors.NewConfigurationError("DISCORD_USER_ID", errors.Wrap(mailnotify_errors.ErrInvalidValue, "must be a numeric user id"))
	}

	if c.Imap.Port <= 0 || c.Imap.Port > 65535 {
		return mailnotify_errors.NewConfigurationError("IMAP_PORT", mailnotify_errors.ErrInvalidValue)
	}

	if c.Notifier.PollInterval <= 0 {
		return mailnotify_errors.NewConfigurationError("NOTIFIER_POLL_INTERVAL", mailnotify_errors.ErrInvalidValue)
	}
	if c.Notifier.BackoffInitial <= 0 || c.Notifier.BackoffMax < c.Notifier.BackoffInitial {
		return mailnotify_errors.NewConfigurationError("NOTIFIER_BACKOFF_MAX", errors.Wrap(mailnotify_errors.ErrInvalidValue, "must be >= NOTIFIER_BACKOFF_INITIAL > 0"))
	}
	if c.Notifier.MaxBatch < 0 {
		return mailnotify_errors.NewConfigurationError("NOTIFIER_MAX_BATCH", mailnotify_errors.ErrInvalidValue)
	}

	switch enum.GetCursorStore(c.Notifier.CursorStore) {
	case enum.CursorStoreMemory:
	case enum.CursorStorePostgres:
		if c.CursorDatabaseConfig.Host == "" || c.CursorDatabaseConfig.DBName == "" || c.CursorDatabaseConfig.User == "" {
			return mailnotify_errors.NewConfigurationError("CURSOR_POSTGRES_HOST", errors.Wrap(mailnotify_errors.ErrMissingValue, "postgres cursor store needs host, db name and user"))
		}
	default:
		return mailnotify_errors.NewConfigurationError("CURSOR_STORE", mailnotify_errors.ErrInvalidValue)
	}

	// a new leader starting from an empty in-memory cursor would re-notify or skip mail
	if c.LeaderElection != nil && c.LeaderElection.Enabled && enum.GetCursorStore(c.Notifier.CursorStore) != enum.CursorStorePostgres {
		return mailnotify_errors.NewConfigurationError("LEADER_ELECTION_ENABLED", errors.Wrap(mailnotify_errors.ErrInvalidValue, "leader election requires CURSOR_STORE=postgres"))
	}

	return nil
}
