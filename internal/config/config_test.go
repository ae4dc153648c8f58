package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range providerEnvKeys {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "")
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, llm.ProviderGroq, cfg.LLM.Default)
	assert.Equal(t, llm.ProviderGemini, cfg.LLM.Fallback)
	assert.Equal(t, llm.DefaultTimeout, cfg.LLM.Timeout)
	assert.Equal(t, 20, cfg.Session.MaxTurns)
	assert.Equal(t, MirrorSQLite, cfg.Session.Mirror)
	assert.Equal(t, "Finance Tracker", cfg.Prompt.AppName)
	assert.NotContains(t, cfg.Database.Path, "~")
	assert.False(t, cfg.Server.TLS)
	assert.True(t, strings.HasSuffix(cfg.Server.CertDir, filepath.Join("spicetalk", "certs")))
	assert.NotContains(t, cfg.Server.CertDir, "~")

	require.Contains(t, cfg.LLM.Providers, llm.ProviderGroq)
	assert.InDelta(t, 0.7, cfg.LLM.Providers[llm.ProviderGroq].Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.LLM.Providers[llm.ProviderGroq].MaxTokens)
}

func TestLoad_Overrides(t *testing.T) {
	clearProviderEnv(t)

	v := viper.New()
	v.Set("llm.default", "gemini")
	v.Set("llm.fallback", "gemini")
	v.Set("llm.timeout", "5s")
	v.Set("llm.providers.gemini.api_key", "g-key")
	v.Set("session.max_turns", 6)
	v.Set("prompt.currency_symbol", "$")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Default)
	assert.Empty(t, cfg.LLM.Fallback, "fallback equal to default is dropped")
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "g-key", cfg.LLM.Providers["gemini"].APIKey)
	assert.Equal(t, 6, cfg.Session.MaxTurns)
	assert.Equal(t, "$", cfg.Prompt.CurrencySymbol)

	ctrl := cfg.LLM.ControllerConfig()
	assert.Equal(t, "gemini", ctrl.Default)
	assert.Equal(t, 5*time.Second, ctrl.Timeout)
}

func TestLoad_ConventionalEnvKeys(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("JWT_SECRET", "shh")

	v := viper.New()
	v.Set("llm.providers.gemini.api_key", "from-config")
	t.Setenv("GEMINI_API_KEY", "ignored")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Providers["groq"].APIKey)
	assert.Equal(t, "from-config", cfg.LLM.Providers["gemini"].APIKey)
	assert.Equal(t, "shh", cfg.Auth.JWTSecret)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("SPICETALK_SERVER_ADDR", ":9999")
	t.Setenv("SPICETALK_LLM_PROVIDERS_GROQ_API_KEY", "prefixed")

	v := viper.New()
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "prefixed", cfg.LLM.Providers["groq"].APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7070"
  allowed_origins:
    - https://app.example.com
session:
  mirror: none
llm:
  providers:
    openai:
      api_key: sk-test
      model: gpt-4o
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, MirrorNone, cfg.Session.Mirror)
	assert.Equal(t, "sk-test", cfg.LLM.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Providers["openai"].Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		values map[string]any
		name   string
	}{
		{name: "log level", values: map[string]any{"logging.level": "loud"}},
		{name: "log format", values: map[string]any{"logging.format": "xml"}},
		{name: "unknown provider", values: map[string]any{"llm.default": "mystery"}},
		{name: "zero max turns", values: map[string]any{"session.max_turns": 0}},
		{name: "unknown mirror", values: map[string]any{"session.mirror": "mongo"}},
		{name: "redis mirror without url", values: map[string]any{"session.mirror": "redis"}},
		{name: "temperature out of range", values: map[string]any{"llm.providers.groq.temperature": 3.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			v := viper.New()
			for k, val := range tt.values {
				v.Set(k, val)
			}
			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SPICETALK_TEST_DIR", "/data")

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "~", want: home},
		{input: "~/db/chat.db", want: filepath.Join(home, "db/chat.db")},
		{input: "$SPICETALK_TEST_DIR/chat.db", want: "/data/chat.db"},
		{input: "/abs/path.db", want: "/abs/path.db"},
		{input: ":memory:", want: ":memory:"},
		{input: "~other/db", want: "~other/db"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.input))
		})
	}
}
