// Package config loads heapql settings from a YAML file with HEAPQL_*
// environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// EngineConfig controls query evaluation.
type EngineConfig struct {
	ResultLimit       int           `mapstructure:"result_limit"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	ReachableExcludes []string      `mapstructure:"reachable_excludes"`
	SizeMode          string        `mapstructure:"size_mode"` // compressed or uncompressed
	MaxLivePaths      int           `mapstructure:"max_live_paths"`
	Parallelism       int           `mapstructure:"parallelism"`
	// BusinessPrefixes marks application packages in class histograms.
	BusinessPrefixes  []string `mapstructure:"business_prefixes"`
	ExportCompression string   `mapstructure:"export_compression"` // none, gzip or zstd
}

// SnapshotsConfig controls the loaded-heap cache.
type SnapshotsConfig struct {
	CacheDir  string `mapstructure:"cache_dir"`
	MaxLoaded int    `mapstructure:"max_loaded"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres, mysql or none
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds dump storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"` // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"` // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"`
}

// ServerConfig holds the web UI listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty logs to stderr
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HEAPQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the specified file path. An empty path
// searches ./config.yaml, ./configs and /etc/heapql; a missing file falls
// back to defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/heapql")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.result_limit", 1000)
	v.SetDefault("engine.query_timeout", 5*time.Minute)
	v.SetDefault("engine.reachable_excludes", []string{})
	v.SetDefault("engine.size_mode", "compressed")
	v.SetDefault("engine.max_live_paths", 10)
	v.SetDefault("engine.parallelism", 4)
	v.SetDefault("engine.business_prefixes", []string{})
	v.SetDefault("engine.export_compression", "gzip")

	v.SetDefault("snapshots.cache_dir", "./data/snapshots")
	v.SetDefault("snapshots.max_loaded", 2)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./data/heapql.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./dumps")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql", "none":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if (c.Database.Type == "postgres" || c.Database.Type == "mysql") && c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	switch c.Storage.Type {
	case "local", "cos":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	switch c.Engine.SizeMode {
	case "compressed", "uncompressed":
	default:
		return fmt.Errorf("unsupported size mode: %s", c.Engine.SizeMode)
	}
	switch c.Engine.ExportCompression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("unsupported export compression: %s", c.Engine.ExportCompression)
	}
	if c.Engine.ResultLimit < 1 {
		return fmt.Errorf("result limit must be at least 1")
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	if c.Snapshots.MaxLoaded < 1 {
		return fmt.Errorf("max loaded snapshots must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// EnsureCacheDir creates the snapshot cache directory if it doesn't exist.
func (c *Config) EnsureCacheDir() error {
	if c.Snapshots.CacheDir == "" {
		return nil
	}
	return os.MkdirAll(c.Snapshots.CacheDir, 0755)
}
