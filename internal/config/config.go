// Package config loads application configuration via viper and installs the
// global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatalogConfig configures catalog seeding.
type CatalogConfig struct {
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
}

// ReconcileConfig holds the reconciliation thresholds threaded through the
// classifier, validator, derivation, and generator. Tests vary these by
// constructing their own value; nothing reads them from package state.
type ReconcileConfig struct {
	RatioTolerance      float64 `yaml:"ratio_tolerance" mapstructure:"ratio_tolerance"`
	MinEvidenceQuoteLen int     `yaml:"min_evidence_quote_len" mapstructure:"min_evidence_quote_len"`
	DefaultGranularity  string  `yaml:"default_granularity" mapstructure:"default_granularity"`
	QueueLimit          int     `yaml:"queue_limit" mapstructure:"queue_limit"`
	PacketDir           string  `yaml:"packet_dir" mapstructure:"packet_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "revisor.db")
	v.SetDefault("catalog.seed_path", "catalog.yaml")
	v.SetDefault("reconcile.ratio_tolerance", 0.01)
	v.SetDefault("reconcile.min_evidence_quote_len", 20)
	v.SetDefault("reconcile.default_granularity", "year")
	v.SetDefault("reconcile.queue_limit", 0)
	v.SetDefault("reconcile.packet_dir", "packets")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
