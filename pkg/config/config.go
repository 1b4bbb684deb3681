package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/yumyai/afscan/internal/util"
	"github.com/yumyai/afscan/logger"
)

// EnvPrefix is prepended to every environment variable, e.g. AFSCAN_DATA.
const EnvPrefix = "AFSCAN"

type Config struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA"`
	Catalog string `yaml:"catalog" envconfig:"CATALOG"`

	Aligner     string   `yaml:"aligner" envconfig:"ALIGNER"`
	AlignerMode string   `yaml:"aligner_mode" envconfig:"ALIGNER_MODE"`
	AlignerDB   string   `yaml:"aligner_db" envconfig:"ALIGNER_DB"`
	AlignerArgs []string `yaml:"aligner_args" envconfig:"ALIGNER_ARGS"`
	Threads     int      `yaml:"threads" envconfig:"THREADS"`
	MinIdentity float64  `yaml:"min_identity" envconfig:"MIN_IDENTITY"`

	OutputDir        string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	WorkDir          string `yaml:"work_dir" envconfig:"WORK_DIR"`
	KeepIntermediate bool   `yaml:"keep_intermediate" envconfig:"KEEP_INTERMEDIATE"`
	Store            string `yaml:"store" envconfig:"STORE"`

	LogFile  string `yaml:"log_file" envconfig:"LOG_FILE"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Addr         string `yaml:"addr" envconfig:"ADDR"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

func Default() *Config {
	return &Config{
		DataDir:   "./data",
		Aligner:   "diamond",
		Threads:   1,
		OutputDir: ".",
		LogLevel:  "info",
		Addr:      "0.0.0.0:8080",

		MaxBodyBytes: 256 << 20,
	}
}

// Load layers configuration: defaults, then the YAML file at path (if any),
// then .env files, then AFSCAN_* environment variables. Command-line flags
// are applied by the caller afterwards.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	// Try load env
	if err := godotenv.Load(envFiles...); err != nil {
		logger.Warn("No .env found, using local environment")
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	return cfg, nil
}

func (cfg *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// CatalogPath returns the configured catalog or the default under DataDir.
func (cfg *Config) CatalogPath() string {
	if cfg.Catalog != "" {
		return cfg.Catalog
	}
	return filepath.Join(cfg.DataDir, "catalog", "mutations.tsv")
}

// AlignerDBPath returns the configured aligner database or the default under
// DataDir.
func (cfg *Config) AlignerDBPath() string {
	if cfg.AlignerDB != "" {
		return cfg.AlignerDB
	}
	return filepath.Join(cfg.DataDir, "db", "resistance_proteins.dmnd")
}

// Validate checks the values needed before a run can start.
func (cfg *Config) Validate(needAligner bool) error {
	var errs []error

	if !util.FileExists(cfg.CatalogPath()) {
		errs = append(errs, fmt.Errorf("catalog %w: %s", fs.ErrNotExist, cfg.CatalogPath()))
	}
	if needAligner && !util.FileExists(cfg.AlignerDBPath()) {
		errs = append(errs, fmt.Errorf("aligner database %w: %s", fs.ErrNotExist, cfg.AlignerDBPath()))
	}
	if cfg.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be at least 1, got %d", cfg.Threads))
	}
	if cfg.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", cfg.MaxBodyBytes))
	}
	if cfg.MinIdentity < 0 || cfg.MinIdentity > 100 {
		errs = append(errs, fmt.Errorf("min identity must be within 0-100, got %g", cfg.MinIdentity))
	}

	return errors.Join(errs...)
}
