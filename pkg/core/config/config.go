// Package config loads service configuration from config/dcf.yaml and the
// environment (.env is loaded first when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"dcf_valuation/pkg/core/pipeline"
)

// DefaultPath is where the service looks for its YAML config.
const DefaultPath = "config/dcf.yaml"

type Config struct {
	Server ServerConfig     `yaml:"server"`
	Log    LogConfig        `yaml:"log"`
	Engine pipeline.Options `yaml:"engine"`
	Store  StoreConfig      `yaml:"store"`
	Client ClientConfig     `yaml:"client"`
	Report ReportConfig     `yaml:"report"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"cors_origin"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// StoreConfig selects run persistence. DatabaseURL wins over Dir; with both
// empty, runs are not persisted.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Dir         string `yaml:"dir"`
}

type ClientConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ReportConfig struct {
	Currency string `yaml:"currency"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":5000", CORSOrigin: "*"},
		Log:    LogConfig{Level: "info"},
		Engine: pipeline.DefaultOptions(),
		Client: ClientConfig{
			BaseURL:    "http://localhost:5000",
			Retries:    3,
			RetryDelay: 5 * time.Second,
			Timeout:    30 * time.Second,
		},
		Report: ReportConfig{Currency: "USD"},
	}
}

// Load reads .env (if any), then the YAML file at path on top of Default(),
// then environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("DCF_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DCF_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DCF_HORIZON_YEARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DCF_HORIZON_YEARS: %w", err)
		}
		c.Engine.HorizonYears = n
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("DCF_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("DCF_API_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("DCF_CURRENCY"); v != "" {
		c.Report.Currency = v
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Engine.HorizonYears < 1 {
		return fmt.Errorf("engine.horizon_years must be at least 1 (got %d)", c.Engine.HorizonYears)
	}
	if err := c.Engine.Grid.Validate(); err != nil {
		return fmt.Errorf("engine.grid: %w", err)
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("client.retries must not be negative (got %d)", c.Client.Retries)
	}
	return nil
}
