package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "WORDBATTLE"

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	Store       string
	DatabaseURL string

	MaxRounds        int
	CountdownSeconds int
	JoinGrace        time.Duration
	Language         string
	Difficulty       string

	WordProvider   string
	OpenAIKey      string
	OpenAIModel    string
	OpenAIEndpoint string
	WordAttempts   int
	WordHistory    time.Duration
}

// RegisterFlags declares every setting on fs with its default.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Addr, "addr", "a", ":8080", "address to listen on (env: WORDBATTLE_ADDR)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: WORDBATTLE_LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", "json", "json or console (env: WORDBATTLE_LOG_FORMAT)")

	fs.StringVar(&c.Store, "store", "postgres", "postgres or memory (env: WORDBATTLE_STORE)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string (env: WORDBATTLE_DATABASE_URL)")

	fs.IntVar(&c.MaxRounds, "max-rounds", 5, "rounds per game (env: WORDBATTLE_MAX_ROUNDS)")
	fs.IntVar(&c.CountdownSeconds, "countdown-seconds", 5, "seconds per round (env: WORDBATTLE_COUNTDOWN_SECONDS)")
	fs.DurationVar(&c.JoinGrace, "join-grace", 10*time.Second, "time a matched player has to join (env: WORDBATTLE_JOIN_GRACE)")
	fs.StringVar(&c.Language, "language", "en", "word language (env: WORDBATTLE_LANGUAGE)")
	fs.StringVar(&c.Difficulty, "difficulty", "very very hard", "word difficulty (env: WORDBATTLE_DIFFICULTY)")

	fs.StringVar(&c.WordProvider, "word-provider", "openai", "openai or list (env: WORDBATTLE_WORD_PROVIDER)")
	fs.StringVar(&c.OpenAIKey, "openai-api-key", "", "OpenAI API key (env: WORDBATTLE_OPENAI_API_KEY)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4.1-mini", "chat model used to pick words (env: WORDBATTLE_OPENAI_MODEL)")
	fs.StringVar(&c.OpenAIEndpoint, "openai-endpoint", "", "chat completions URL override (env: WORDBATTLE_OPENAI_ENDPOINT)")
	fs.IntVar(&c.WordAttempts, "word-attempts", 5, "generator calls per word before giving up (env: WORDBATTLE_WORD_ATTEMPTS)")
	fs.DurationVar(&c.WordHistory, "word-history", 30*24*time.Hour, "how long a word stays excluded for a player (env: WORDBATTLE_WORD_HISTORY)")
}

// Bind fills flags the user did not set from WORDBATTLE_* variables.
func Bind(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	switch {
	case c.MaxRounds < 1:
		return fmt.Errorf("max-rounds must be positive: %d", c.MaxRounds)
	case c.CountdownSeconds < 1:
		return fmt.Errorf("countdown-seconds must be positive: %d", c.CountdownSeconds)
	case c.JoinGrace <= 0:
		return fmt.Errorf("join-grace must be positive: %s", c.JoinGrace)
	case c.WordAttempts < 1:
		return fmt.Errorf("word-attempts must be positive: %d", c.WordAttempts)
	case c.WordHistory <= 0:
		return fmt.Errorf("word-history must be positive: %s", c.WordHistory)
	}

	switch c.Store {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("--database-url is required with --store=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want postgres or memory)", c.Store)
	}

	switch c.WordProvider {
	case "list":
	case "openai":
		if c.OpenAIKey == "" {
			return errors.New("--openai-api-key is required with --word-provider=openai")
		}
	default:
		return fmt.Errorf("unknown word provider %q (want openai or list)", c.WordProvider)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q (want json or console)", c.LogFormat)
	}
	return nil
}
