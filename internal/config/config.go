package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Images     ImagesConfig     `mapstructure:"images"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ExtractionConfig selects the model provider and bounds each request.
type ExtractionConfig struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type GeminiConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// OpenAIConfig covers OpenAI and any server speaking its API.
type OpenAIConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	MaxTokens          int    `mapstructure:"max_tokens"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type ImagesConfig struct {
	Dir       string `mapstructure:"dir"`
	URLPrefix string `mapstructure:"url_prefix"`
	Width     uint   `mapstructure:"width"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	CacheNone     = "none"
	CacheRedis    = "redis"
	CacheDatabase = "database"

	openAIBaseURL = "https://api.openai.com/v1"
	defaultDSN    = "recipebox.db"
)

// Load reads configuration from dir: an optional .env file, an optional
// config.json, then RECIPEBOX_ environment variables, over defaults.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RECIPEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// well-known names used without the prefix
	v.BindEnv("gemini.api_key", "RECIPEBOX_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("openai.api_key", "RECIPEBOX_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("database.dsn", "RECIPEBOX_DATABASE_DSN", "DATABASE_URL")
	v.BindEnv("log.level", "RECIPEBOX_LOG_LEVEL", "LOG_LEVEL")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyLegacyKeys(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8081"})
	v.SetDefault("server.max_body_bytes", 32<<20)

	v.SetDefault("extraction.provider", ProviderGemini)
	v.SetDefault("extraction.timeout", "45s")
	v.SetDefault("extraction.concurrency", 4)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 2000)

	v.SetDefault("openai.base_url", openAIBaseURL)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.max_tokens", 2000)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", defaultDSN)

	v.SetDefault("cache.backend", CacheDatabase)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "recipebox:extract:")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("images.dir", "images")
	v.SetDefault("images.url_prefix", "/images")
	v.SetDefault("images.width", 800)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// applyLegacyKeys honors the flat keys of older config.json files.
func applyLegacyKeys(v *viper.Viper, cfg *Config) {
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = v.GetString("gemini_api_key")
	}
	if url := v.GetString("database_url"); url != "" && cfg.Database.DSN == defaultDSN {
		cfg.Database.DSN = url
	}
	if strings.HasPrefix(cfg.Database.DSN, "postgres://") || strings.HasPrefix(cfg.Database.DSN, "postgresql://") {
		cfg.Database.Driver = "postgres"
	}
}

// Validate rejects unknown choices and a missing key for the chosen provider.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}

	switch c.Extraction.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini api key is required")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" && strings.TrimRight(c.OpenAI.BaseURL, "/") == openAIBaseURL {
			return fmt.Errorf("openai api key is required")
		}
	default:
		return fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch c.Cache.Backend {
	case CacheNone, CacheDatabase:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("invalid extraction timeout")
	}
	return nil
}

// MaskAPIKey shows only the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
