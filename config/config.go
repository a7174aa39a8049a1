// Package config loads the service configuration. Sources are applied in
// increasing precedence: built-in defaults, an optional YAML file, a .env
// file and the process environment. Command-line flags are applied by the
// caller on the returned Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fashnai/fashnai/runtime/credentials"
)

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderBedrock   = "bedrock"
)

// Environment variable prefixes of the credential pools.
const (
	ModelKeyPrefix  = "MODEL_API_KEY"
	GeminiKeyPrefix = "GEMINI_API_KEY"
)

// Defaults.
const (
	DefaultHTTPAddr          = ":8000"
	DefaultProvider          = ProviderAnthropic
	DefaultRequestsPerMinute = 0 // unlimited
	DefaultMaxRetries        = 3
	DefaultBranchTimeout     = 120 * time.Second
	DefaultSpecCacheTTL      = time.Hour
	DefaultEnvFile           = ".env"
)

// defaultModels maps providers to the model used when MODEL_ID is unset.
var defaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4o",
	ProviderBedrock:   "anthropic.claude-3-5-sonnet-20240620-v1:0",
}

type (
	// Config is the service configuration.
	Config struct {
		HTTPAddr string       `yaml:"http_addr"`
		Debug    bool         `yaml:"debug"`
		Model    ModelConfig  `yaml:"model"`
		Search   SearchConfig `yaml:"search"`
		Image    ImageConfig  `yaml:"image"`
		Redis    RedisConfig  `yaml:"redis"`
		// SpecCacheTTL is the lifetime of cached product specifications.
		SpecCacheTTL time.Duration `yaml:"spec_cache_ttl"`
		// MaxRetries is the number of attempts per agent invocation.
		MaxRetries int `yaml:"max_retries"`
		// BranchTimeout bounds each branch of the comprehensive analysis.
		BranchTimeout time.Duration `yaml:"branch_timeout"`

		// ModelKeys holds the model provider API keys.
		ModelKeys *credentials.Pool `yaml:"-"`
		// GeminiKeys holds the image generation API keys.
		GeminiKeys *credentials.Pool `yaml:"-"`
	}

	// ModelConfig selects the language model.
	ModelConfig struct {
		Provider string `yaml:"provider"`
		ID       string `yaml:"id"`
		// RequestsPerMinute is the rate limit applied per API key.
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		AWSRegion         string `yaml:"aws_region"`
	}

	// SearchConfig configures the web search tool.
	SearchConfig struct {
		SerperAPIKey string `yaml:"serper_api_key"`
	}

	// ImageConfig configures try-on image generation.
	ImageConfig struct {
		ModelID string `yaml:"model_id"`
	}

	// RedisConfig configures the shared specification cache. The cache is
	// in-process when Addr is empty.
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	}

	// Options controls where Load reads from.
	Options struct {
		// File is an optional YAML file. It must exist when set.
		File string
		// EnvFile is the dotenv file. A missing file is ignored.
		EnvFile string
		// Lookup reads the process environment. Defaults to os.LookupEnv.
		Lookup func(string) (string, bool)
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr: DefaultHTTPAddr,
		Model: ModelConfig{
			Provider:          DefaultProvider,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		SpecCacheTTL:  DefaultSpecCacheTTL,
		MaxRetries:    DefaultMaxRetries,
		BranchTimeout: DefaultBranchTimeout,
	}
}

// Load builds the configuration from defaults, opts.File, opts.EnvFile and
// the environment.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", opts.File, err)
		}
	}
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}
	env := opts.Lookup
	if env == nil {
		env = os.LookupEnv
	}
	lookup := func(k string) (string, bool) {
		if v, ok := env(k); ok {
			return v, true
		}
		v, ok := dotenv[k]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.Model.ID == "" {
		cfg.Model.ID = defaultModels[cfg.Model.Provider]
	}
	cfg.ModelKeys = credentials.FromEnv(ModelKeyPrefix, lookup)
	cfg.GeminiKeys = credentials.FromEnv(GeminiKeyPrefix, lookup)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("MODEL_PROVIDER", &c.Model.Provider)
	str("MODEL_ID", &c.Model.ID)
	str("AWS_REGION", &c.Model.AWSRegion)
	str("SERPER_API_KEY", &c.Search.SerperAPIKey)
	str("IMAGE_MODEL_ID", &c.Image.ModelID)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	c.Model.Provider = strings.ToLower(c.Model.Provider)

	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num("MODEL_REQUESTS_PER_MINUTE", &c.Model.RequestsPerMinute)
	num("MAX_RETRIES", &c.MaxRetries)
	dur("SPEC_CACHE_TTL", &c.SpecCacheTTL)
	dur("BRANCH_TIMEOUT", &c.BranchTimeout)
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports configuration errors, including missing credentials for
// the selected provider. Search, image generation and Redis are optional.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.ModelKeys.Len() == 0 {
			errs = append(errs, fmt.Errorf("%s provider requires %s or %s_1..%d", c.Model.Provider, ModelKeyPrefix, ModelKeyPrefix, credentials.MaxNumberedKeys))
		}
	case ProviderBedrock:
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}
	if c.Model.ID == "" {
		errs = append(errs, errors.New("MODEL_ID is required"))
	}
	if c.Model.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("MODEL_REQUESTS_PER_MINUTE must not be negative"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("MAX_RETRIES must be at least 1"))
	}
	if c.BranchTimeout <= 0 {
		errs = append(errs, errors.New("BRANCH_TIMEOUT must be positive"))
	}
	if c.SpecCacheTTL <= 0 {
		errs = append(errs, errors.New("SPEC_CACHE_TTL must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Capacity is the approximate number of model requests per minute across
// all keys. Zero means requests are not limited client side.
func (c *Config) Capacity() int {
	return c.ModelKeys.Len() * c.Model.RequestsPerMinute
}
