package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Endpoint:        "https://convert.example.com/api",
		RequestEncoding: "json",
		OutputDir:       ".",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RequestEncoding != "json" || cfg.RequestTimeout != 0 || cfg.HistoryDB != ":memory:" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.AutoConvert {
		t.Error("auto-convert should default to true")
	}
	if cfg.MaxImageSize != 25*1024*1024 {
		t.Errorf("max-image-size = %d", cfg.MaxImageSize)
	}
}

func TestLoadFrom_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EXCALIBOARD_ENDPOINT", "http://localhost:8080/convert")
	t.Setenv("EXCALIBOARD_REQUEST_TIMEOUT", "30s")
	t.Setenv("EXCALIBOARD_AUTO_CONVERT", "false")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoint != "http://localhost:8080/convert" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("request-timeout = %s", cfg.RequestTimeout)
	}
	if cfg.AutoConvert {
		t.Error("auto-convert should be false")
	}
}

func TestLoadFrom_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	data := []byte("endpoint: https://file.example.com\nrequest-encoding: multipart\npretty: true\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoint != "https://file.example.com" || cfg.RequestEncoding != "multipart" || !cfg.Pretty {
		t.Errorf("config file not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"relative endpoint", func(c *Config) { c.Endpoint = "/convert" }, true},
		{"ftp endpoint", func(c *Config) { c.Endpoint = "ftp://example.com" }, true},
		{"multipart", func(c *Config) { c.RequestEncoding = "multipart" }, false},
		{"bad encoding", func(c *Config) { c.RequestEncoding = "xml" }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
		{"negative max size", func(c *Config) { c.MaxImageSize = -1 }, true},
		{"no output", func(c *Config) { c.OutputDir = "" }, true},
		{"bucket output", func(c *Config) { c.OutputDir = ""; c.S3Bucket = "boards" }, false},
		{"negative camera", func(c *Config) { c.CameraDevice = -1 }, true},
		{"debug level", func(c *Config) { c.LogLevel = "debug" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"json format", func(c *Config) { c.LogFormat = "json" }, false},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
