package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, c *Config) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)
	return fs
}

func TestDefaults(t *testing.T) {
	var c Config
	fs := newFlags(t, &c)
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 5, c.MaxRounds)
	assert.Equal(t, 5, c.CountdownSeconds)
	assert.Equal(t, 10*time.Second, c.JoinGrace)
	assert.Equal(t, "en", c.Language)
	assert.Equal(t, "very very hard", c.Difficulty)
	assert.Equal(t, "gpt-4.1-mini", c.OpenAIModel)
	assert.Equal(t, 720*time.Hour, c.WordHistory)
}

func TestBind_EnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("WORDBATTLE_MAX_ROUNDS", "3")
	t.Setenv("WORDBATTLE_JOIN_GRACE", "15s")
	t.Setenv("WORDBATTLE_STORE", "memory")

	var c Config
	fs := newFlags(t, &c)
	require.NoError(t, fs.Parse([]string{"--store", "postgres"}))
	require.NoError(t, Bind(fs))

	assert.Equal(t, 3, c.MaxRounds)
	assert.Equal(t, 15*time.Second, c.JoinGrace)
	assert.Equal(t, "postgres", c.Store, "explicit flag wins over env")
}

func TestBind_RejectsMalformedEnv(t *testing.T) {
	t.Setenv("WORDBATTLE_COUNTDOWN_SECONDS", "soon")

	var c Config
	fs := newFlags(t, &c)
	require.NoError(t, fs.Parse(nil))
	err := Bind(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORDBATTLE_COUNTDOWN_SECONDS")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogFormat:        "json",
			Store:            "memory",
			MaxRounds:        5,
			CountdownSeconds: 5,
			JoinGrace:        10 * time.Second,
			WordProvider:     "list",
			WordAttempts:     5,
			WordHistory:      time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "zero rounds", mutate: func(c *Config) { c.MaxRounds = 0 }, wantErr: "max-rounds"},
		{name: "zero countdown", mutate: func(c *Config) { c.CountdownSeconds = 0 }, wantErr: "countdown-seconds"},
		{name: "no grace", mutate: func(c *Config) { c.JoinGrace = 0 }, wantErr: "join-grace"},
		{name: "no attempts", mutate: func(c *Config) { c.WordAttempts = 0 }, wantErr: "word-attempts"},
		{name: "postgres needs url", mutate: func(c *Config) { c.Store = "postgres" }, wantErr: "database-url"},
		{name: "postgres with url", mutate: func(c *Config) { c.Store = "postgres"; c.DatabaseURL = "postgres://x" }},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "redis" }, wantErr: "unknown store"},
		{name: "openai needs key", mutate: func(c *Config) { c.WordProvider = "openai" }, wantErr: "openai-api-key"},
		{name: "unknown provider", mutate: func(c *Config) { c.WordProvider = "dice" }, wantErr: "unknown word provider"},
		{name: "unknown format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
