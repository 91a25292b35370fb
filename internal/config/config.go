// Package config loads checkin configuration from checkin.yaml, .env files
// and CHECKIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/checkin/internal/llm"
	"github.com/abhisek/checkin/internal/notify"
)

// EnvPrefix prefixes every environment override, e.g. CHECKIN_DATABASE_DSN.
const EnvPrefix = "CHECKIN"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       llm.Config      `mapstructure:"llm"`
	Notify    notify.Config   `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
	Questions QuestionsConfig `mapstructure:"questions"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	// DSN is optional for sqlite, which defaults to the per-user data dir.
	DSN string `mapstructure:"dsn" validate:"required_unless=Driver sqlite"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type QuestionsConfig struct {
	// RefillCount is how many questions a refill asks the LLM for.
	RefillCount int `mapstructure:"refill_count" validate:"min=1,max=50"`
}

type Loader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
	envFiles   []string
}

// NewLoader prepares a loader. An empty configFile searches for
// checkin.yaml in the working directory and $HOME/.config/checkin. With no
// envFiles, .env in the working directory is read when present.
func NewLoader(configFile string, envFiles ...string) (*Loader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("checkin")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/checkin")
	}

	return &Loader{
		viper:      v,
		validator:  validate,
		translator: trans,
		envFiles:   envFiles,
	}, nil
}

// Load reads, merges and validates the configuration.
func (loader *Loader) Load() (*Config, error) {
	if err := loadEnvFiles(loader.envFiles); err != nil {
		return nil, err
	}

	v := loader.viper
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	cfg.LLM = resolveLLM(cfg.LLM)

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("validate configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: llm: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	llmDefaults := llm.DefaultConfig()
	notifyRetry := notify.DefaultRetryConfig()

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", llmDefaults.Anthropic.Model)
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", llmDefaults.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", llmDefaults.Gemini.Model)
	v.SetDefault("llm.gemini.base_url", "")
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", llmDefaults.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", llmDefaults.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", llmDefaults.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", llmDefaults.Retry.MaxWait)
	v.SetDefault("llm.retry.max_jitter", llmDefaults.Retry.MaxJitter)
	v.SetDefault("llm.timeout", llmDefaults.Timeout)

	v.SetDefault("notify.retry.attempts", notifyRetry.Attempts)
	v.SetDefault("notify.retry.initial_wait", notifyRetry.InitialWait)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("questions.refill_count", 10)
}

// resolveLLM fills in the provider when none was configured: the
// CHECKIN_* overrides first, then the vendors' standard key variables,
// then the offline mock.
func resolveLLM(cfg llm.Config) llm.Config {
	cfg = llm.ApplyEnv(cfg)
	if cfg.Provider != "" {
		return cfg
	}
	if discovered, ok := llm.DiscoverConfig(); ok {
		cfg.Provider = discovered.Provider
		cfg.Anthropic.APIKey = firstNonEmpty(cfg.Anthropic.APIKey, discovered.Anthropic.APIKey)
		cfg.OpenAI.APIKey = firstNonEmpty(cfg.OpenAI.APIKey, discovered.OpenAI.APIKey)
		cfg.Gemini.APIKey = firstNonEmpty(cfg.Gemini.APIKey, discovered.Gemini.APIKey)
		cfg.OpenRouter.APIKey = firstNonEmpty(cfg.OpenRouter.APIKey, discovered.OpenRouter.APIKey)
		return cfg
	}
	cfg.Provider = "mock"
	return cfg
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
