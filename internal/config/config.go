package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/smsbatch/smsbatch/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	TextIt     TextItConfig     `validate:"required"`
	Ingestion  IngestionConfig  `validate:"required"`
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address         string        `validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required,oneof=debug info warn error"`
}

// TextItConfig holds the upstream messaging API settings
type TextItConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required,url"`
	WebURL              string        `mapstructure:"web_url" validate:"required,url"`
	APIToken            string        `mapstructure:"api_token" validate:"required"`
	AllSubscribersGroup string        `mapstructure:"all_subscribers_group" validate:"required"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RetryMax            int           `mapstructure:"retry_max" validate:"gte=0"`
	RatePerSec          int           `mapstructure:"rate_per_sec" validate:"gte=0"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
}

// IngestionConfig controls how subscriber lists are split into remote groups
type IngestionConfig struct {
	BatchSize       int           `mapstructure:"batch_size" validate:"gt=0"`
	Concurrency     int           `mapstructure:"concurrency" validate:"gt=0"`
	GroupNamePrefix string        `mapstructure:"group_name_prefix" validate:"required"`
	RetryMax        int           `mapstructure:"retry_max" validate:"gte=0"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional, values already in the environment win
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/smsbatch")

	v.SetEnvPrefix("SMSBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can populate values
// that are absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", types.LogLevelInfo)

	v.SetDefault("textit.base_url", "https://api.textit.in/api/v2/")
	v.SetDefault("textit.web_url", "https://textit.in/")
	v.SetDefault("textit.api_token", "")
	v.SetDefault("textit.all_subscribers_group", "")
	v.SetDefault("textit.timeout", 30*time.Second)
	v.SetDefault("textit.retry_max", 3)
	v.SetDefault("textit.rate_per_sec", 10)
	v.SetDefault("textit.cache_ttl", 5*time.Minute)

	v.SetDefault("ingestion.batch_size", 100)
	v.SetDefault("ingestion.concurrency", 4)
	v.SetDefault("ingestion.group_name_prefix", "Subscribers")
	v.SetDefault("ingestion.retry_max", 2)
	v.SetDefault("ingestion.retry_interval", 500*time.Millisecond)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and tests. It does not read files or the environment.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080", ShutdownTimeout: 10 * time.Second},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		TextIt: TextItConfig{
			BaseURL:    "https://api.textit.in/api/v2/",
			WebURL:     "https://textit.in/",
			Timeout:    30 * time.Second,
			RetryMax:   3,
			RatePerSec: 10,
			CacheTTL:   5 * time.Minute,
		},
		Ingestion: IngestionConfig{
			BatchSize:       100,
			Concurrency:     4,
			GroupNamePrefix: "Subscribers",
			RetryMax:        2,
			RetryInterval:   500 * time.Millisecond,
		},
	}
}
