package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LocalConfig contains all configuration for the local job runner.
type LocalConfig struct {
	Pool    PoolConfig    `mapstructure:"pool"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PoolConfig sizes the map and reduce worker pools.
type PoolConfig struct {
	Mappers       int  `mapstructure:"mappers"`
	Reducers      int  `mapstructure:"reducers"`
	IsolatePanics bool `mapstructure:"isolate_panics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// LoadLocal loads the local runner configuration from the given path.
// If configPath is empty, it looks for local.yaml in the config/ directory.
// Environment variables with WORKPOOL_LOCAL_ prefix override config file values.
func LoadLocal(configPath string) (*LocalConfig, error) {
	v := viper.New()

	v.SetDefault("pool.mappers", 4)
	v.SetDefault("pool.reducers", 4)
	v.SetDefault("pool.isolate_panics", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":2112")
	v.SetDefault("metrics.namespace", "workpool")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("local")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("WORKPOOL_LOCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg LocalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *LocalConfig) Validate() error {
	var errs []error
	if c.Pool.Mappers < 1 {
		errs = append(errs, fmt.Errorf("pool.mappers must be >= 1, got %d", c.Pool.Mappers))
	}
	if c.Pool.Reducers < 1 {
		errs = append(errs, fmt.Errorf("pool.reducers must be >= 1, got %d", c.Pool.Reducers))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
