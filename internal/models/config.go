package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Fraud    FraudConfig
	Sweep    SweepConfig
	Treasury TreasuryConfig
	Formance FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedMembers     bool
}

// FraudConfig holds fraud gate settings. Rule points and thresholds come
// from the rules file; these are the runtime knobs around them.
type FraudConfig struct {
	RulesFile          string // optional YAML override of the default rules
	RateLimiterBackend string // "memory" or "redis"
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
}

// SweepConfig holds the background finalization sweeper settings.
type SweepConfig struct {
	Interval        time.Duration
	PayoutRetry     bool
	ShutdownTimeout time.Duration
}

// TreasuryConfig selects and parameterizes the treasury ledger backend.
type TreasuryConfig struct {
	Backend     string // "sqlite" or "formance"
	PayoutAsset string // asset symbol used when disbursing payouts
}

// FormanceConfig holds Formance Stack connection settings.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}
