// Package config loads and validates spicetalk settings from files, flags and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/prompt"
	"github.com/Veraticus/the-spice-must-talk/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. SPICETALK_SERVER_ADDR.
const EnvPrefix = "SPICETALK"

// History mirror backends.
const (
	MirrorNone   = "none"
	MirrorSQLite = "sqlite"
	MirrorRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Logging  Logging        `mapstructure:"logging"`
	Server   Server         `mapstructure:"server"`
	Database Database       `mapstructure:"database"`
	Redis    Redis          `mapstructure:"redis"`
	Auth     Auth           `mapstructure:"auth"`
	Prompt   prompt.Options `mapstructure:"prompt"`
	LLM      LLM            `mapstructure:"llm"`
	Session  Session        `mapstructure:"session"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=console json text"`
}

// Server configures the WebSocket listener.
type Server struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	CertDir        string   `mapstructure:"cert_dir"`
	TLS            bool     `mapstructure:"tls"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `mapstructure:"path" validate:"required"`
}

// Redis configures the optional Redis history mirror.
type Redis struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// Auth configures token verification. An empty secret makes every caller a guest.
type Auth struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	RequireKnownUser bool   `mapstructure:"require_known_user"`
}

// LLM selects and configures model providers.
type LLM struct {
	Providers map[string]llm.ProviderConfig `mapstructure:"providers" validate:"dive"`
	Default   string                        `mapstructure:"default" validate:"required,oneof=groq gemini openai anthropic"`
	Fallback  string                        `mapstructure:"fallback" validate:"omitempty,oneof=groq gemini openai anthropic"`
	Timeout   time.Duration                 `mapstructure:"timeout" validate:"gt=0"`
}

// Session bounds in-memory history and picks the durable mirror.
type Session struct {
	Mirror        string        `mapstructure:"mirror" validate:"oneof=none sqlite redis"`
	MaxTurns      int           `mapstructure:"max_turns" validate:"gt=0"`
	MirrorBuffer  int           `mapstructure:"mirror_buffer" validate:"gte=0"`
	GuestCacheTTL time.Duration `mapstructure:"guest_cache_ttl" validate:"gte=0"`
}

// ControllerConfig returns the invocation settings for the llm controller.
func (l LLM) ControllerConfig() llm.ControllerConfig {
	return llm.ControllerConfig{Default: l.Default, Fallback: l.Fallback, Timeout: l.Timeout}
}

// providerEnvKeys are the conventional key variables read when the config
// leaves a provider's key empty.
var providerEnvKeys = map[string]string{
	llm.ProviderGroq:      "GROQ_API_KEY",
	llm.ProviderGemini:    "GEMINI_API_KEY",
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SetDefaults registers every key so environment overrides apply to it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "~/.local/share/spicetalk/certs")

	v.SetDefault("database.path", "~/.local/share/spicetalk/spicetalk.db")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 7*24*time.Hour)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.require_known_user", false)

	v.SetDefault("llm.default", llm.ProviderGroq)
	v.SetDefault("llm.fallback", llm.ProviderGemini)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	for _, id := range llm.KnownProviders {
		prefix := "llm.providers." + id + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"temperature", 0.7)
		v.SetDefault(prefix+"max_tokens", 1024)
		v.SetDefault(prefix+"rate_limit", 0)
	}

	v.SetDefault("session.max_turns", session.DefaultMaxTurns)
	v.SetDefault("session.mirror", MirrorSQLite)
	v.SetDefault("session.mirror_buffer", session.DefaultMirrorBuffer)
	v.SetDefault("session.guest_cache_ttl", 10*time.Minute)

	defaults := prompt.DefaultOptions()
	v.SetDefault("prompt.app_name", defaults.AppName)
	v.SetDefault("prompt.currency_symbol", defaults.CurrencySymbol)
	v.SetDefault("prompt.currency_code", defaults.CurrencyCode)
}

// BindEnv makes SPICETALK_* variables override config keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v.
// It follows this precedence for provider keys:
// 1. Viper configuration (config file or SPICETALK_ env vars)
// 2. Conventional environment variables (GROQ_API_KEY, ...)
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "failed to decode config")
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]llm.ProviderConfig)
	}
	for id, envKey := range providerEnvKeys {
		pc := cfg.LLM.Providers[id]
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv(envKey)
		}
		cfg.LLM.Providers[id] = pc
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Server.CertDir = ExpandPath(cfg.Server.CertDir)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.LLM.Fallback == cfg.LLM.Default {
		cfg.LLM.Fallback = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return oops.In("config").
			Code("invalid_config").
			Wrapf(fmt.Errorf("%w: %w", common.ErrInvalidConfig, err), "failed to validate config")
	}

	if c.Session.Mirror == MirrorRedis && c.Redis.URL == "" {
		return oops.In("config").
			Code("invalid_config").
			With("session.mirror", c.Session.Mirror).
			Errorf("%w: redis.url is required when session.mirror is redis", common.ErrInvalidConfig)
	}
	return nil
}
