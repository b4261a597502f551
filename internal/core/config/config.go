package config

import (
	redisclient "github.com/qverse/engine/internal/infra/redis"
	"github.com/qverse/engine/internal/infra/storage/postgres"
	"github.com/qverse/engine/internal/ledger"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Ledger   ledger.Config      `yaml:"ledger"`
	Exchange ExchangeConfig     `yaml:"exchange"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ExchangeConfig holds exchange settings.
type ExchangeConfig struct {
	// DefaultFeeRate applies to pools created without an explicit rate.
	DefaultFeeRate float64 `yaml:"default_fee_rate"`
	// MatchInterval is how often the matcher sweeps each active pair,
	// in seconds. 0 disables the background sweep.
	MatchIntervalSeconds int `yaml:"match_interval_seconds"`
}
