package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the lending ledger daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	Environment   string          `yaml:"env"`
	DatabasePath  string          `yaml:"db_path"`
	Log           LogConfig       `yaml:"log"`
	Oracle        OracleConfig    `yaml:"oracle"`
	Banks         []BankConfig    `yaml:"banks"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// LogConfig controls log level and optional rotating file output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// OracleConfig pins the freshness window and the static quotes used by dev
// deployments.
type OracleConfig struct {
	MaxAgeSeconds int64         `yaml:"max_age_seconds"`
	Quotes        []QuoteConfig `yaml:"quotes"`
}

// QuoteConfig seeds one static price quote and its feed mapping.
type QuoteConfig struct {
	Symbol   string `yaml:"symbol"`
	FeedID   string `yaml:"feed_id"`
	Price    int64  `yaml:"price"`
	Exponent int32  `yaml:"exponent"`
}

// BankConfig bootstraps a bank at startup when it does not already exist.
type BankConfig struct {
	Authority   string `yaml:"authority"`
	MintAddress string `yaml:"mint"`
	Symbol      string `yaml:"symbol"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	DepositInterestRate   uint64 `yaml:"deposit_rate_bps"`
	BorrowInterestRate    uint64 `yaml:"borrow_rate_bps"`
	InterestAccrualPeriod int64  `yaml:"accrual_period_seconds"`

	LiquidationThreshold   uint64 `yaml:"liquidation_threshold_bps"`
	LiquidationBonus       uint64 `yaml:"liquidation_bonus_bps"`
	LiquidationCloseFactor uint64 `yaml:"liquidation_close_factor_bps"`
	MaxLTV                 uint64 `yaml:"max_ltv_bps"`

	DepositFee    uint64 `yaml:"deposit_fee_bps"`
	WithdrawalFee uint64 `yaml:"withdrawal_fee_bps"`
	MinDeposit    uint64 `yaml:"min_deposit"`
}

// RateLimitConfig throttles mutating API calls per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8440",
		DatabasePath:  "lendingd.db",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8440"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.DatabasePath = strings.TrimSpace(cfg.DatabasePath)
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "lendingd.db"
	}
	cfg.Log.Level = strings.TrimSpace(cfg.Log.Level)
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	if cfg.Oracle.MaxAgeSeconds < 0 {
		cfg.Oracle.MaxAgeSeconds = 0
	}
	for i := range cfg.Oracle.Quotes {
		cfg.Oracle.Quotes[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Oracle.Quotes[i].Symbol))
		cfg.Oracle.Quotes[i].FeedID = strings.TrimSpace(cfg.Oracle.Quotes[i].FeedID)
	}
	for i := range cfg.Banks {
		cfg.Banks[i].Authority = strings.TrimSpace(cfg.Banks[i].Authority)
		cfg.Banks[i].MintAddress = strings.TrimSpace(cfg.Banks[i].MintAddress)
		cfg.Banks[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Banks[i].Symbol))
		cfg.Banks[i].Name = strings.TrimSpace(cfg.Banks[i].Name)
		cfg.Banks[i].Description = strings.TrimSpace(cfg.Banks[i].Description)
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	seenMints := make(map[string]struct{}, len(cfg.Banks))
	for _, bank := range cfg.Banks {
		if bank.MintAddress == "" {
			return fmt.Errorf("banks: mint required")
		}
		if bank.Symbol == "" {
			return fmt.Errorf("banks: symbol required for mint %s", bank.MintAddress)
		}
		if _, dup := seenMints[bank.MintAddress]; dup {
			return fmt.Errorf("banks: duplicate mint %s", bank.MintAddress)
		}
		seenMints[bank.MintAddress] = struct{}{}
	}
	seenSymbols := make(map[string]struct{}, len(cfg.Oracle.Quotes))
	for _, quote := range cfg.Oracle.Quotes {
		if quote.Symbol == "" {
			return fmt.Errorf("oracle.quotes: symbol required")
		}
		if quote.FeedID == "" {
			return fmt.Errorf("oracle.quotes: feed_id required for %s", quote.Symbol)
		}
		if quote.Price <= 0 {
			return fmt.Errorf("oracle.quotes: price must be positive for %s", quote.Symbol)
		}
		if quote.Exponent > 0 || quote.Exponent < -18 {
			return fmt.Errorf("oracle.quotes: exponent must be within [-18, 0] for %s", quote.Symbol)
		}
		if _, dup := seenSymbols[quote.Symbol]; dup {
			return fmt.Errorf("oracle.quotes: duplicate symbol %s", quote.Symbol)
		}
		seenSymbols[quote.Symbol] = struct{}{}
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit: requests_per_minute must not be negative")
	}
	return nil
}
