package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEndpoint is the conversion service URL baked in at build time:
//
//	go build -ldflags "-X github.com/excaliboard/excaliboard/internal/config.DefaultEndpoint=https://..."
var DefaultEndpoint = ""

// Config holds all application configuration
type Config struct {
	// Conversion service
	Endpoint        string        `mapstructure:"endpoint"`
	RequestEncoding string        `mapstructure:"request-encoding"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	MaxImageSize    int64         `mapstructure:"max-image-size"`

	// Output
	OutputDir string `mapstructure:"output-dir"`
	Pretty    bool   `mapstructure:"pretty"`

	// Database paths
	HistoryDB string `mapstructure:"history-db"`
	FSMDBPath string `mapstructure:"fsm-db-path"`

	// Camera
	CameraDevice int    `mapstructure:"camera-device"`
	CameraSource string `mapstructure:"camera-source"`

	// S3 configuration
	S3Region    string `mapstructure:"s3-region"`
	S3Bucket    string `mapstructure:"s3-bucket"`
	S3Prefix    string `mapstructure:"s3-prefix"`
	S3Anonymous bool   `mapstructure:"s3-anonymous"`
	S3Overwrite bool   `mapstructure:"s3-overwrite"`

	// Behaviour
	AutoConvert bool `mapstructure:"auto-convert"`

	// Logging
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("request-encoding", "json")
	v.SetDefault("request-timeout", time.Duration(0))
	v.SetDefault("max-image-size", 25*1024*1024)
	v.SetDefault("output-dir", ".")
	v.SetDefault("pretty", false)
	v.SetDefault("history-db", ":memory:")
	v.SetDefault("fsm-db-path", "")
	v.SetDefault("camera-device", 0)
	v.SetDefault("camera-source", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-prefix", "")
	v.SetDefault("s3-anonymous", false)
	v.SetDefault("s3-overwrite", false)
	v.SetDefault("auto-convert", true)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// Load reads configuration from .env, environment, config file, and defaults
func Load() (*Config, error) {
	// .env is optional; variables already set win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration through v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (will be EXCALIBOARD_ENDPOINT, etc.)
	v.SetEnvPrefix("EXCALIBOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.excaliboard")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty (set EXCALIBOARD_ENDPOINT or --endpoint)")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an http(s) URL: %q", c.Endpoint)
	}
	switch strings.ToLower(c.RequestEncoding) {
	case "", "json", "multipart":
	default:
		return fmt.Errorf("request-encoding must be json or multipart, got %q", c.RequestEncoding)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request-timeout must be non-negative")
	}
	if c.MaxImageSize < 0 {
		return fmt.Errorf("max-image-size must be non-negative")
	}
	if c.S3Bucket == "" && c.OutputDir == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	if c.CameraDevice < 0 {
		return fmt.Errorf("camera-device must be non-negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return level, nil
}
