package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-ledger/internal/config"
	"pos-ledger/internal/core"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, config.DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "0.18", cfg.Ledger.TaxRate.String())
	assert.Equal(t, 30*time.Minute, cfg.Ledger.HoldTTL)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, float64(20), cfg.RateLimit.RPS)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("STORE_DRIVER", "Postgres")
	v.Set("DATABASE_URL", "postgres://localhost/pos")
	v.Set("ALLOWED_ORIGINS", " https://till.example , ,https://back.example")
	v.Set("HOLD_TTL", "45m")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"https://till.example", "https://back.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 45*time.Minute, cfg.Ledger.HoldTTL)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"tax rate", "TAX_RATE", "eighteen"},
		{"discount cap", "FLAT_DISCOUNT_CAP", "half"},
		{"hold ttl", "HOLD_TTL", "0s"},
		{"driver", "STORE_DRIVER", "sqlite"},
		{"postgres without url", "STORE_DRIVER", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := config.FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestSettings_RejectsOutOfRangeTax(t *testing.T) {
	v := viper.New()
	v.Set("TAX_RATE", "1.5")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	_, err = cfg.Settings(config.DefaultLoyaltyProgram())
	assert.Error(t, err)
}

func TestLoadLoyaltyProgram_ShippedFile(t *testing.T) {
	p, err := config.LoadLoyaltyProgram(filepath.Join("..", "..", "config", "loyalty.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.1", p.BaseRate.String())
	require.Len(t, p.Tiers, 4)
	assert.Equal(t, "PLATINUM", p.Tiers[3].Name)
	require.NotEmpty(t, p.Rewards)
	assert.Equal(t, "RWD-FLAT-100", p.Rewards[0].ID)
	assert.Equal(t, core.RewardFlatDiscount, p.Rewards[0].ValueType)
	assert.Equal(t, 23, p.Rewards[0].ValidUntil.Hour(), "bare dates run to the end of the day")

	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)
	s, err := cfg.Settings(p)
	require.NoError(t, err)
	assert.Equal(t, "SILVER", core.TierFor(1000, s.Tiers).Name)
}

func TestLoadLoyaltyProgram_MissingFile(t *testing.T) {
	p, err := config.LoadLoyaltyProgram(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, p.Rewards)
	assert.Len(t, p.Tiers, len(core.DefaultTiers()))
}

func TestParseLoyaltyProgram_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "tiers: [oops"},
		{"bad base rate", `base_rate: "x"`},
		{"bad multiplier", "tiers:\n  - name: A\n    min_points: 0\n    multiplier: \"fast\""},
		{"missing id", "rewards:\n  - name: thing\n    value_type: PRODUCT\n    valid_until: \"2030-01-01\""},
		{"duplicate id", "rewards:\n  - id: R\n    value_type: PRODUCT\n    valid_until: \"2030-01-01\"\n  - id: R\n    value_type: PRODUCT\n    valid_until: \"2030-01-01\""},
		{"unknown type", "rewards:\n  - id: R\n    value_type: CASHBACK\n    valid_until: \"2030-01-01\""},
		{"bad date", "rewards:\n  - id: R\n    value_type: PRODUCT\n    valid_until: \"soon\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseLoyaltyProgram([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
