// Package config provides configuration loading and validation for libdb.
// Values are populated from .libdb.yaml, LIBDB_* environment variables and CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "LIBDB"

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// LogConfig configures local and aggregated logging
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error critical"`
	Format string `mapstructure:"format" validate:"oneof=json pretty"`
	Retain int    `mapstructure:"retain" validate:"min=1"`
}

// LLMConfig configures the classifier collaborator
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// SearchConfig configures the search collaborator
type SearchConfig struct {
	APIKey        string `mapstructure:"api_key"`
	EngineID      string `mapstructure:"engine_id"`
	HostingDomain string `mapstructure:"hosting_domain" validate:"required,hostname"`
	PageSize      int    `mapstructure:"page_size" validate:"min=1,max=10"`
	MaxPages      int    `mapstructure:"max_pages" validate:"min=1,max=10"`
}

// StoreConfig selects where entity state is kept
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory postgres badger"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`
	BadgerPath  string `mapstructure:"badger_path" validate:"required_if=Driver badger"`
}

// PipelineConfig tunes the actor system
type PipelineConfig struct {
	AnalysisConcurrency int           `mapstructure:"analysis_concurrency" validate:"min=1"`
	CallTimeout         time.Duration `mapstructure:"call_timeout" validate:"gte=0"`
	MailboxWarn         int           `mapstructure:"mailbox_warn" validate:"gte=0"`
}

// RateLimitConfig configures inbound HTTP rate limiting
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps" validate:"gt=0"`
	Burst   int     `mapstructure:"burst" validate:"min=1"`
}

// Config holds all runtime configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Store     StoreConfig     `mapstructure:"store"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// SetDefaults registers the built-in default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pretty")
	v.SetDefault("log.retain", 500)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.engine_id", "")
	v.SetDefault("search.hosting_domain", "github.com")
	v.SetDefault("search.page_size", 10)
	v.SetDefault("search.max_pages", 10)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.badger_path", "./data/libdb")

	v.SetDefault("pipeline.analysis_concurrency", 4)
	v.SetDefault("pipeline.call_timeout", 60*time.Second)
	v.SetDefault("pipeline.mailbox_warn", 1000)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
}

// BindEnv makes v read LIBDB_SECTION_KEY variables and the conventional provider variables
// used by the rest of the tooling.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fallbacks := map[string]string{
		"llm.api_key":        "GEMINI_API_KEY",
		"search.api_key":     "GOOGLE_SEARCH_API_KEY",
		"search.engine_id":   "GOOGLE_SEARCH_ENGINE_ID",
		"store.database_url": "DATABASE_URL",
	}
	for key, env := range fallbacks {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile reads path, or .libdb.yaml from the working or home directory when path is empty.
// A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(".libdb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := Load(viper.New())
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults are invalid: %v", err))
	}
	return cfg
}

// ValidationError lists every invalid field of a configuration
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "config error: " + strings.Join(e.Fields, "; ")
}

var validate = newValidator()

// newValidator reports fields by their mapstructure key
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
// API keys are not required here; commands that reach external services check them.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config error: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("'%s' %s", configKey(fe.Namespace()), friendlyMessage(fe)))
	}
	return &ValidationError{Fields: fields}
}

// configKey strips the root type from "Config.store.database_url"
func configKey(namespace string) string {
	_, key, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return key
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must not exceed " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "hostname":
		return "must be a host name"
	default:
		return "is invalid"
	}
}

// RequireLLM returns an error if no classifier API key is configured
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config error: 'llm.api_key' is required (or set GEMINI_API_KEY)")
	}
	return nil
}

// RequireSearch returns an error if the search collaborator is not configured
func (c *Config) RequireSearch() error {
	if c.Search.APIKey == "" || c.Search.EngineID == "" {
		return fmt.Errorf("config error: 'search.api_key' and 'search.engine_id' are required (or set GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID)")
	}
	return nil
}
