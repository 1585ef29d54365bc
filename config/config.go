package config

import (
	"time"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12222"`
	PodName string `env:"POD_NAME"`
}

type ImapConfig struct {
	Host           string        `env:"IMAP_HOST" envDefault:"imap.gmail.com"`
	Port           int           `env:"IMAP_PORT" envDefault:"993"`
	Email          string        `env:"GMAIL_EMAIL,required"`
	AppPassword    string        `env:"GMAIL_APP_PASSWORD,required"`
	Folder         string        `env:"IMAP_FOLDER" envDefault:"INBOX"`
	DialTimeout    time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	CommandTimeout time.Duration `env:"IMAP_COMMAND_TIMEOUT" envDefault:"60s"`
	LogoutTimeout  time.Duration `env:"IMAP_LOGOUT_TIMEOUT" envDefault:"5s"`
}

type DiscordConfig struct {
	BotToken       string        `env:"DISCORD_TOKEN,required"`
	UserID         string        `env:"DISCORD_USER_ID,required"`
	RequestTimeout time.Duration `env:"DISCORD_REQUEST_TIMEOUT" envDefault:"20s"`
}

type NotifierConfig struct {
	PollInterval   time.Duration `env:"NOTIFIER_POLL_INTERVAL" envDefault:"30s"`
	BackoffInitial time.Duration `env:"NOTIFIER_BACKOFF_INITIAL" envDefault:"5s"`
	BackoffMax     time.Duration `env:"NOTIFIER_BACKOFF_MAX" envDefault:"5m"`
	MaxBatch       int           `env:"NOTIFIER_MAX_BATCH" envDefault:"0"`
	CursorStore    string        `env:"CURSOR_STORE" envDefault:"memory"`
}

type CursorDatabaseConfig struct {
	Host            string `env:"CURSOR_POSTGRES_HOST"`
	Port            string `env:"CURSOR_POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"CURSOR_POSTGRES_USER"`
	DBName          string `env:"CURSOR_POSTGRES_DB_NAME"`
	Password        string `env:"CURSOR_POSTGRES_PASSWORD"`
	MaxConn         int    `env:"CURSOR_POSTGRES_DB_MAX_CONN" envDefault:"5"`
	MaxIdleConn     int    `env:"CURSOR_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"2"`
	ConnMaxLifetime int    `env:"CURSOR_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"CURSOR_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"CURSOR_POSTGRES_SSL_MODE" envDefault:"require"`
}

type LeaderElectionConfig struct {
	Enabled   bool   `env:"LEADER_ELECTION_ENABLED" envDefault:"false"`
	Namespace string `env:"POD_NAMESPACE" envDefault:"default"`
	LeaseName string `env:"LEADER_ELECTION_LEASE_NAME" envDefault:"mailnotify-leader"`
}
