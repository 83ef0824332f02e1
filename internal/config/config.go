package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"alcyxob/run-coach/internal/coach"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Coach    CoachConfig    `mapstructure:"coach"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig holds the secret used to verify identity tokens. Tokens are
// issued elsewhere; this service only checks them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// OpenAIConfig configures the generative collaborator. BaseURL may point at
// any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	// Dir is the badger directory. Empty runs the cache in memory.
	Dir        string        `mapstructure:"dir"`
	PreviewTTL time.Duration `mapstructure:"preview_ttl"`
	// GCSchedule is a cron spec for value-log garbage collection.
	GCSchedule string `mapstructure:"gc_schedule"`
}

type CoachConfig struct {
	// PaceOffsets maps race type to seconds per mile added to the
	// reference pace when predicting race pace.
	PaceOffsets           map[string]int `mapstructure:"pace_offsets"`
	AllowPartialFirstWeek bool           `mapstructure:"allow_partial_first_week"`
}

// Offsets converts the configured pace offsets, falling back to the
// defaults for every race type not present.
func (c CoachConfig) Offsets() (coach.PaceOffsets, error) {
	offsets := coach.DefaultPaceOffsets()
	for k, v := range c.PaceOffsets {
		rt, err := coach.ParseRaceType(k)
		if err != nil {
			return nil, fmt.Errorf("coach.pace_offsets: %w", err)
		}
		offsets[rt] = v
	}
	return offsets, nil
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, openai.api_key -> OPENAI_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "run_coach")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", "90s")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.preview_ttl", "1h")
	v.SetDefault("cache.gc_schedule", "@every 30m")
	v.SetDefault("coach.allow_partial_first_week", true)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err = config.Coach.Offsets(); err != nil {
		return config, err
	}
	return config, nil
}
