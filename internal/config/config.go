package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Jobs struct {
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"20"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	RetryDelay   time.Duration `env:"RETRY_DELAY" envDefault:"30s"`
	Lease        time.Duration `env:"LEASE" envDefault:"1m"`
	Retention    time.Duration `env:"RETENTION" envDefault:"168h"`
}

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN    string `env:"DB_DSN" envDefault:"clanhub.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"clanhub.events"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	Jobs Jobs `envPrefix:"JOBS_"`
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return errors.New("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if c.Jobs.PollInterval <= 0 || c.Jobs.BatchSize <= 0 || c.Jobs.MaxAttempts <= 0 {
		return errors.New("JOBS_POLL_INTERVAL, JOBS_BATCH_SIZE and JOBS_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
