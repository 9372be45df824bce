// Package config loads run settings: defaults, then an optional YAML file,
// then environment variables (a .env file is honoured by the commands).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of one simulation or estimation run.
type Config struct {
	// DBPath is the SQLite run database (population, skim cache, observations, shadow prices).
	DBPath string `yaml:"db_path"`

	// SeedPath is a JSON population file loaded by dbtool.
	SeedPath string `yaml:"seed_path"`

	CoefficientsPath string `yaml:"coefficients_path"`

	// DatabaseURL, when set, sends estimation rows to Postgres instead of SQLite.
	DatabaseURL string `yaml:"database_url,omitempty"`

	Workers int `yaml:"workers"`

	// Passes is the number of shadow-price iterations of a simulate run.
	Passes int `yaml:"passes"`

	SampleSize int `yaml:"sample_size"`

	ShadowPriceStep float64 `yaml:"shadow_price_step"`

	// DistanceDecay > 0 builds origin-zone sampling strata weighted by
	// size * exp(-decay * miles).
	DistanceDecay float64 `yaml:"distance_decay"`

	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		DBPath:           "data/daysim.db",
		SeedPath:         "data/seeds/population.json",
		CoefficientsPath: "data/coefficients.yaml",
		Workers:          runtime.NumCPU(),
		Passes:           1,
		SampleSize:       30,
		ShadowPriceStep:  1,
		DistanceDecay:    0,
		LogLevel:         "info",
	}
}

// Load applies defaults, the YAML file at path (skipped when path is empty)
// and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = fileCfg
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Passes < 1 {
		return fmt.Errorf("passes must be at least 1, got %d", c.Passes)
	}
	if c.SampleSize < 1 {
		return fmt.Errorf("sample_size must be at least 1, got %d", c.SampleSize)
	}
	if c.ShadowPriceStep < 0 {
		return fmt.Errorf("shadow_price_step must be non-negative, got %v", c.ShadowPriceStep)
	}
	if c.DistanceDecay < 0 {
		return fmt.Errorf("distance_decay must be non-negative, got %v", c.DistanceDecay)
	}
	return nil
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func applyEnvOverrides(c *Config) error {
	c.DBPath = Get("DAYSIM_DB_PATH", c.DBPath)
	c.SeedPath = Get("DAYSIM_SEED_PATH", c.SeedPath)
	c.CoefficientsPath = Get("DAYSIM_COEFFICIENTS", c.CoefficientsPath)
	c.DatabaseURL = Get("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = Get("DAYSIM_LOG_LEVEL", c.LogLevel)

	ints := []struct {
		key string
		dst *int
	}{
		{"DAYSIM_WORKERS", &c.Workers},
		{"DAYSIM_PASSES", &c.Passes},
		{"DAYSIM_SAMPLE_SIZE", &c.SampleSize},
	}
	for _, o := range ints {
		v := Get(o.key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s=%q: %w", o.key, v, err)
		}
		*o.dst = n
	}

	if v := Get("DAYSIM_SHADOW_PRICE_STEP", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env DAYSIM_SHADOW_PRICE_STEP=%q: %w", v, err)
		}
		c.ShadowPriceStep = f
	}
	return nil
}
