package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/till/internal/money"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvStoreDriver, EnvStoreDSN, EnvTaxRate, EnvServerAddr} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "till.db", cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	rate, err := cfg.Rate()
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
currency: EUR
locale: de
tax_rate: "0.19"
delivery_fee: 499
rules: ./rules
store:
  driver: postgres
  dsn: postgres://till@localhost/till
server:
  addr: 127.0.0.1:9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, money.Amount(499), cfg.DeliveryFee)
	assert.Equal(t, "./rules", cfg.Rules)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "till", cfg.Store.Prefix, "unset keys keep their defaults")
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)

	rate, err := cfg.Rate()
	require.NoError(t, err)
	assert.Equal(t, money.Amount(190), rate.Apply(1000))
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tax_rate: \"0.05\"\nstore: {driver: sqlite, dsn: file.db}\n")
	t.Setenv(EnvStoreDriver, "redis")
	t.Setenv(EnvStoreDSN, "localhost:6379")
	t.Setenv(EnvTaxRate, "0.2")
	t.Setenv(EnvServerAddr, ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.DSN)
	assert.Equal(t, "0.2", cfg.TaxRate)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "curency: USD\n", "failed to parse config"},
		{"bad tax rate", "tax_rate: lots\n", "tax_rate"},
		{"negative tax rate", "tax_rate: \"-0.1\"\n", "tax_rate"},
		{"negative delivery fee", "delivery_fee: -5\n", "delivery_fee"},
		{"unknown driver", "store: {driver: oracle}\n", "unknown driver"},
		{"empty dsn", "store: {driver: mysql, dsn: \"\"}\n", "store.dsn is required"},
		{"bad currency", "currency: XX\n", "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Formatter(t *testing.T) {
	f, err := Default().Formatter()
	require.NoError(t, err)
	assert.Equal(t, "USD", f.Code())
}
