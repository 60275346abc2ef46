// Package config loads till.yaml and applies environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/money"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Environment variables that override the file.
const (
	EnvStoreDriver = "TILL_STORE_DRIVER"
	EnvStoreDSN    = "TILL_STORE_DSN"
	EnvTaxRate     = "TILL_TAX_RATE"
	EnvServerAddr  = "TILL_SERVER_ADDR"
)

// Config is the runtime configuration of till.
type Config struct {
	Currency    string       `yaml:"currency"`
	Locale      string       `yaml:"locale"`
	TaxRate     string       `yaml:"tax_rate"`
	DeliveryFee money.Amount `yaml:"delivery_fee"`

	// Rules is a CUE directory or file, or a YAML rules file.
	Rules string `yaml:"rules"`

	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

// StoreConfig selects the inventory and customer backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite, a DSN for mysql, a URL for postgres
	// and an address or URL for redis.
	DSN string `yaml:"dsn"`

	// Prefix namespaces redis keys.
	Prefix string `yaml:"prefix"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Currency: "USD",
		Locale:   "en",
		TaxRate:  "0",
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "till.db",
			Prefix: "till",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Store.Driver = getEnv(EnvStoreDriver, c.Store.Driver)
	c.Store.DSN = getEnv(EnvStoreDSN, c.Store.DSN)
	c.TaxRate = getEnv(EnvTaxRate, c.TaxRate)
	c.Server.Addr = getEnv(EnvServerAddr, c.Server.Addr)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// Validate checks the fields that cannot be checked by decoding alone.
func (c Config) Validate() error {
	if _, err := c.Rate(); err != nil {
		return fmt.Errorf("tax_rate: %w", err)
	}
	if c.DeliveryFee < 0 {
		return fmt.Errorf("delivery_fee must not be negative")
	}
	switch strings.ToLower(c.Store.Driver) {
	case DriverSQLite, DriverMySQL, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if _, err := money.NewFormatter(c.Currency, c.Locale); err != nil {
		return err
	}
	return nil
}

// Rate parses TaxRate.
func (c Config) Rate() (money.Rate, error) {
	if strings.TrimSpace(c.TaxRate) == "" {
		return money.Rate{}, nil
	}
	return money.ParseRate(c.TaxRate)
}

// Formatter returns the money formatter for the configured currency and locale.
func (c Config) Formatter() (*money.Formatter, error) {
	return money.NewFormatter(c.Currency, c.Locale)
}
