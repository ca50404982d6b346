// Package config loads service settings from the environment (and optionally a
// config or .env file named by CONFIG_FILE) using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/spf13/viper"

	"github.com/tinoosan/bankledger/internal/ledger"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	Redis       RedisConfig

	// MinAccountBalance is the floor every account balance must respect.
	MinAccountBalance money.Amount
	// CurrencyShort labels amounts in messages and tags every money value.
	CurrencyShort string
	DefaultLocale string

	LogLevel  string
	LogFormat string

	DevSeed            bool
	SnapshotPath       string
	CORSAllowedOrigins []string
}

// Policy returns the ledger rules derived from the configuration.
func (c Config) Policy() ledger.Policy {
	return ledger.Policy{MinBalance: c.MinAccountBalance}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("idempotency_ttl", "24h")
	v.SetDefault("min_account_balance", "0")
	v.SetDefault("currency_short", "EUR")
	v.SetDefault("default_locale", "en")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("dev_seed", false)
	v.SetDefault("snapshot_path", "")
	v.SetDefault("cors_allowed_origins", "")
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddr:    v.GetString("http_addr"),
		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis_addr")),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			TTL:      v.GetDuration("idempotency_ttl"),
		},
		CurrencyShort: strings.ToUpper(strings.TrimSpace(v.GetString("currency_short"))),
		DefaultLocale: strings.TrimSpace(v.GetString("default_locale")),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		DevSeed:       v.GetBool("dev_seed"),
		SnapshotPath:  strings.TrimSpace(v.GetString("snapshot_path")),
	}
	for _, o := range strings.Split(v.GetString("cors_allowed_origins"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if _, err := money.NewAmountFromMinorUnits(cfg.CurrencyShort, 0); err != nil {
		return Config{}, fmt.Errorf("CURRENCY_SHORT %q: %w", cfg.CurrencyShort, err)
	}
	floor, err := ledger.ParseAmount(cfg.CurrencyShort, v.GetString("min_account_balance"))
	if err != nil {
		return Config{}, fmt.Errorf("MIN_ACCOUNT_BALANCE: %w", err)
	}
	if ledger.MinorUnits(floor) < 0 {
		return Config{}, errors.New("MIN_ACCOUNT_BALANCE must not be negative")
	}
	cfg.MinAccountBalance = floor

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	if cfg.Redis.TTL < 0 {
		return Config{}, errors.New("IDEMPOTENCY_TTL must not be negative")
	}
	return cfg, nil
}
