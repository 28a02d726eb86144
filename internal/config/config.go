package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "zela"
	DefaultPGSSLMode      = "disable"
	DefaultAIBaseURL      = "https://api.openai.com/v1"
	DefaultAIModel        = "gpt-4o-mini"
	DefaultAITimeout      = 30
	DefaultGeocodeBaseURL = "https://nominatim.openstreetmap.org"
	DefaultIdleWarnAfter  = "10m"
	DefaultSessionTTL     = "30m"
	DefaultSweepSpec      = "@every 1m"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Session  SessionConfig  `toml:"session"`
	AI       AIConfig       `toml:"ai"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Geocode  GeocodeConfig  `toml:"geocode"`
	Tickets  TicketsConfig  `toml:"tickets"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// SessionConfig controls conversation session lifetimes. Durations are
// Go duration strings ("10m", "1h30m"). SweepSpec is a cron spec.
type SessionConfig struct {
	IdleWarnAfter string `toml:"idle_warn_after"`
	TTL           string `toml:"ttl"`
	SweepSpec     string `toml:"sweep_spec"`
	InMemory      bool   `toml:"in_memory"`
}

// IdleWarnDuration parses IdleWarnAfter, falling back to the default.
func (c SessionConfig) IdleWarnDuration() time.Duration {
	return parseDuration(c.IdleWarnAfter, 10*time.Minute)
}

// TTLDuration parses TTL, falling back to the default.
func (c SessionConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 30*time.Minute)
}

type AIConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	KeywordTable   string `toml:"keyword_table"`
}

func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultAITimeout * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WhatsAppConfig points at the messaging gateway that fronts the provider.
type WhatsAppConfig struct {
	GatewayBaseURL string `toml:"gateway_base_url"`
	Token          string `toml:"token"`
	WebhookSecret  string `toml:"webhook_secret"`
}

type GeocodeConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TicketsConfig points at the demand-management backend that owns tickets.
type TicketsConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
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
		Session: SessionConfig{
			IdleWarnAfter: DefaultIdleWarnAfter,
			TTL:           DefaultSessionTTL,
			SweepSpec:     DefaultSweepSpec,
		},
		AI: AIConfig{
			BaseURL:        DefaultAIBaseURL,
			Model:          DefaultAIModel,
			TimeoutSeconds: DefaultAITimeout,
		},
		Geocode: GeocodeConfig{
			BaseURL:        DefaultGeocodeBaseURL,
			TimeoutSeconds: 10,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
