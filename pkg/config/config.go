// Package config loads adapter configuration from a config file and
// environment variables and renders it as an adapters.Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aigolabs/aig/pkg/adapters"
	esexternal "github.com/aigolabs/aig/pkg/eventsink/external"
	"github.com/aigolabs/aig/pkg/eventsink/kafka"
	"github.com/aigolabs/aig/pkg/storage/mysql"
	"github.com/aigolabs/aig/pkg/storage/postgres"
	vsexternal "github.com/aigolabs/aig/pkg/vectorstore/external"
)

// DefaultBaseDir roots the file-backed adapters when nothing is
// configured.
const DefaultBaseDir = "data"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults, reads the config.toml file (if found at configDir),
// and binds environment variables with the AIG_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (AIG_STORAGE_BACKEND, AIG_EVENTS_BACKEND, etc.)
//  2. config.toml file values
//  3. Defaults
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("AIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers the default value of every supported key,
// keeping this function the single source of truth for defaults.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", adapters.StorageFile)
	v.SetDefault("storage.base_dir", DefaultBaseDir)

	v.SetDefault("storage.mysql.url", "")
	v.SetDefault("storage.mysql.host", "")
	v.SetDefault("storage.mysql.port", 0)
	v.SetDefault("storage.mysql.user", "")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.database", "")

	v.SetDefault("storage.postgres.url", "")

	v.SetDefault("events.backend", adapters.EventSinkNone)
	v.SetDefault("events.endpoint", "")
	v.SetDefault("events.api_key", "")
	v.SetDefault("events.retries", 0)
	v.SetDefault("events.retry_base_delay", time.Duration(0))
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "")

	v.SetDefault("vectors.backend", adapters.VectorStoreNone)
	v.SetDefault("vectors.endpoint", "")
	v.SetDefault("vectors.api_key", "")

	v.SetDefault("embedding.provider", adapters.EmbeddingNone)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")
}

// FromViper renders the loaded configuration as an adapters.Config.
func FromViper(v *viper.Viper) adapters.Config {
	return adapters.Config{
		Storage:     v.GetString("storage.backend"),
		EventSink:   v.GetString("events.backend"),
		VectorStore: v.GetString("vectors.backend"),
		BaseDir:     v.GetString("storage.base_dir"),
		MySQL: mysql.Config{
			URL:      v.GetString("storage.mysql.url"),
			Host:     v.GetString("storage.mysql.host"),
			Port:     v.GetInt("storage.mysql.port"),
			User:     v.GetString("storage.mysql.user"),
			Password: v.GetString("storage.mysql.password"),
			Database: v.GetString("storage.mysql.database"),
		},
		Postgres: postgres.Config{
			URL: v.GetString("storage.postgres.url"),
		},
		ExternalEvents: esexternal.Config{
			Endpoint:       v.GetString("events.endpoint"),
			APIKey:         v.GetString("events.api_key"),
			Retries:        v.GetInt("events.retries"),
			RetryBaseDelay: v.GetDuration("events.retry_base_delay"),
		},
		ExternalVectors: vsexternal.Config{
			Endpoint: v.GetString("vectors.endpoint"),
			APIKey:   v.GetString("vectors.api_key"),
		},
		Kafka: kafka.Config{
			Brokers: v.GetStringSlice("events.kafka.brokers"),
			Topic:   v.GetString("events.kafka.topic"),
		},
		Embedding: adapters.EmbeddingConfig{
			Provider: v.GetString("embedding.provider"),
			BaseURL:  v.GetString("embedding.base_url"),
			APIKey:   v.GetString("embedding.api_key"),
			Model:    v.GetString("embedding.model"),
		},
	}
}

// Load reads configuration from configDir (and the environment) and
// renders it for adapter construction.
func Load(configDir string) (adapters.Config, error) {
	v, err := InitViper(configDir)
	if err != nil {
		return adapters.Config{}, err
	}

	return FromViper(v), nil
}
