package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Nodes   NodesConfig   `mapstructure:"nodes"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// MonitorConfig holds settings for the connection monitoring loops.
type MonitorConfig struct {
	// PollInterval is the refresh period for canonical connections.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PingInterval is the keep-warm period for delegating connections.
	PingInterval time.Duration `mapstructure:"ping_interval"`

	// TTLEnabled turns the scheduled hard reset on or off.
	TTLEnabled bool `mapstructure:"ttl_enabled"`

	// TTL bounds how long a connection may go without a full reset,
	// and therefore how long a cached identity can go unverified.
	TTL time.Duration `mapstructure:"ttl"`

	// Verbose enables per-connection client count logging.
	Verbose bool `mapstructure:"verbose"`
}

// CacheConfig holds settings for the ranked-list cache.
type CacheConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// NodesConfig points at the node list file.
type NodesConfig struct {
	File string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "nodemonitor")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.ping_interval", "10s")
	v.SetDefault("monitor.ttl_enabled", true)
	v.SetDefault("monitor.ttl", "12h")
	v.SetDefault("monitor.verbose", false)
	v.SetDefault("cache.default_expiration", "15s")
	v.SetDefault("cache.cleanup_interval", "1m")
	v.SetDefault("nodes.file", "configs/nodes.yaml")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Printf("Warning: Config file not found in %s or '.', using defaults/env vars\n", configPath)
		}
	}

	v.SetEnvPrefix("NODEMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Monitor.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c MonitorConfig) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("monitor.ping_interval must be positive, got %v", c.PingInterval)
	}
	if c.TTLEnabled && c.TTL <= 0 {
		return fmt.Errorf("monitor.ttl must be positive when ttl_enabled, got %v", c.TTL)
	}
	return nil
}
