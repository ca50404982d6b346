package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "EUR", cfg.CurrencyShort)
	assert.Equal(t, int64(0), ledger.MinorUnits(cfg.MinAccountBalance))
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MIN_ACCOUNT_BALANCE", "10")
	t.Setenv("CURRENCY_SHORT", "usd")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DEV_SEED", "true")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.CurrencyShort)
	assert.Equal(t, int64(1000), ledger.MinorUnits(cfg.MinAccountBalance))
	assert.Equal(t, int64(1000), ledger.MinorUnits(cfg.Policy().MinBalance))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.DevSeed)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"negative floor":   {"MIN_ACCOUNT_BALANCE", "-1"},
		"not a number":     {"MIN_ACCOUNT_BALANCE", "ten"},
		"too precise":      {"MIN_ACCOUNT_BALANCE", "1.001"},
		"unknown currency": {"CURRENCY_SHORT", "XYZQ"},
		"bad log format":   {"LOG_FORMAT", "xml"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.env")
	require.NoError(t, os.WriteFile(path, []byte("MIN_ACCOUNT_BALANCE=25.50\nHTTP_ADDR=:9090\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2550), ledger.MinorUnits(cfg.MinAccountBalance))
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}
