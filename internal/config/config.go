package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "zheneva"
	DefaultPGSSLMode       = "disable"
	DefaultCooldownSeconds = 900
	DefaultSessionTTLHours = 24
	DefaultSweepSpec       = "@every 30m"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Moderation ModerationConfig `toml:"moderation"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	// SubmitterToken is the token of the public-facing bot that collects
	// submissions; ModeratorToken is the bot that talks to the operator and
	// posts to the channel.
	SubmitterToken string `toml:"submitter_token"`
	ModeratorToken string `toml:"moderator_token"`
	// Channel is the publication target, either "@name" or a numeric chat id.
	Channel       string `toml:"channel"`
	AdminChatID   int64  `toml:"admin_chat_id"`
	AdminPanelURL string `toml:"admin_panel_url"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type ModerationConfig struct {
	CooldownSeconds int    `toml:"cooldown_seconds"`
	SessionTTLHours int    `toml:"session_ttl_hours"`
	SweepSpec       string `toml:"sweep_spec"`
}

// URL builds a postgres connection URL usable by both pgxpool and migrate.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Moderation: ModerationConfig{
			CooldownSeconds: DefaultCooldownSeconds,
			SessionTTLHours: DefaultSessionTTLHours,
			SweepSpec:       DefaultSweepSpec,
		},
	}
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Moderation.CooldownSeconds <= 0 {
		cfg.Moderation.CooldownSeconds = DefaultCooldownSeconds
	}
	if cfg.Moderation.SessionTTLHours <= 0 {
		cfg.Moderation.SessionTTLHours = DefaultSessionTTLHours
	}
	if strings.TrimSpace(cfg.Moderation.SweepSpec) == "" {
		cfg.Moderation.SweepSpec = DefaultSweepSpec
	}
	return cfg, nil
}

// Validate refuses configurations that cannot run: both bot tokens, the
// publication channel, and the operator chat are required.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.SubmitterToken) == "" {
		missing = append(missing, "telegram.submitter_token")
	}
	if strings.TrimSpace(c.Telegram.ModeratorToken) == "" {
		missing = append(missing, "telegram.moderator_token")
	}
	if strings.TrimSpace(c.Telegram.Channel) == "" {
		missing = append(missing, "telegram.channel")
	}
	if c.Telegram.AdminChatID == 0 {
		missing = append(missing, "telegram.admin_chat_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config values: %s", strings.Join(missing, ", "))
	}
	return nil
}
