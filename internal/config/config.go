// Package config reads process settings from the environment (and an optional
// .env file) and the loyalty program from a YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"pos-ledger/internal/core"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Ledger    LedgerConfig
}

type AppConfig struct {
	Port     string
	LogLevel string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	// RPS <= 0 disables rate limiting.
	RPS   float64
	Burst int
}

type LedgerConfig struct {
	TaxRate         decimal.Decimal
	HoldTTL         time.Duration
	FlatDiscountCap decimal.Decimal
	LoyaltyFile     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("TAX_RATE", "0.18")
	v.SetDefault("HOLD_TTL", "30m")
	v.SetDefault("FLAT_DISCOUNT_CAP", "0.5")
	v.SetDefault("LOYALTY_CONFIG", "config/loyalty.yaml")
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	taxRate, err := decimal.NewFromString(v.GetString("TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE %q: %w", v.GetString("TAX_RATE"), err)
	}
	flatCap, err := decimal.NewFromString(v.GetString("FLAT_DISCOUNT_CAP"))
	if err != nil {
		return nil, fmt.Errorf("invalid FLAT_DISCOUNT_CAP %q: %w", v.GetString("FLAT_DISCOUNT_CAP"), err)
	}
	holdTTL := v.GetDuration("HOLD_TTL")
	if holdTTL <= 0 {
		return nil, fmt.Errorf("invalid HOLD_TTL %q", v.GetString("HOLD_TTL"))
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER")))
	switch driver {
	case DriverMemory, DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", driver, DriverMemory, DriverPostgres)
	}
	if driver == DriverPostgres && v.GetString("DATABASE_URL") == "" {
		return nil, fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
	}

	return &Config{
		App: AppConfig{
			Port:     v.GetString("SERVER_PORT"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Driver: driver,
			URL:    v.GetString("DATABASE_URL"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Ledger: LedgerConfig{
			TaxRate:         taxRate,
			HoldTTL:         holdTTL,
			FlatDiscountCap: flatCap,
			LoyaltyFile:     v.GetString("LOYALTY_CONFIG"),
		},
	}, nil
}

// Settings combines the ledger config with a loyalty program into validated engine settings.
func (c *Config) Settings(p *LoyaltyProgram) (core.Settings, error) {
	s := core.Settings{
		TaxRate:         c.Ledger.TaxRate,
		HoldTTL:         c.Ledger.HoldTTL,
		FlatDiscountCap: c.Ledger.FlatDiscountCap,
		BaseRate:        p.BaseRate,
		Tiers:           p.Tiers,
	}
	if err := s.Validate(); err != nil {
		return core.Settings{}, fmt.Errorf("invalid ledger settings: %w", err)
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
