package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"pos-ledger/internal/core"
)

// LoyaltyProgram is the tier table and reward catalog.
type LoyaltyProgram struct {
	BaseRate decimal.Decimal
	Tiers    []core.Tier
	Rewards  []core.RewardDefinition
}

// loyaltyFile mirrors config/loyalty.yaml. Amounts are strings so they parse exactly.
type loyaltyFile struct {
	BaseRate string `yaml:"base_rate"`
	Tiers    []struct {
		Name       string `yaml:"name"`
		MinPoints  uint64 `yaml:"min_points"`
		Multiplier string `yaml:"multiplier"`
	} `yaml:"tiers"`
	Rewards []struct {
		ID             string `yaml:"id"`
		Name           string `yaml:"name"`
		PointsRequired uint64 `yaml:"points_required"`
		ValueType      string `yaml:"value_type"`
		Value          string `yaml:"value"`
		ValidUntil     string `yaml:"valid_until"`
	} `yaml:"rewards"`
}

// DefaultLoyaltyProgram is used when no loyalty file exists.
func DefaultLoyaltyProgram() *LoyaltyProgram {
	return &LoyaltyProgram{
		BaseRate: core.DefaultSettings().BaseRate,
		Tiers:    core.DefaultTiers(),
	}
}

// LoadLoyaltyProgram reads path. A missing file yields the default program
// with an empty reward catalog.
func LoadLoyaltyProgram(path string) (*LoyaltyProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultLoyaltyProgram(), nil
		}
		return nil, fmt.Errorf("reading loyalty config %s: %w", path, err)
	}
	return ParseLoyaltyProgram(data)
}

func ParseLoyaltyProgram(data []byte) (*LoyaltyProgram, error) {
	var f loyaltyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing loyalty config: %w", err)
	}

	p := DefaultLoyaltyProgram()
	if f.BaseRate != "" {
		rate, err := decimal.NewFromString(f.BaseRate)
		if err != nil {
			return nil, fmt.Errorf("invalid base_rate %q: %w", f.BaseRate, err)
		}
		p.BaseRate = rate
	}
	if len(f.Tiers) > 0 {
		p.Tiers = p.Tiers[:0]
		for _, t := range f.Tiers {
			m, err := decimal.NewFromString(t.Multiplier)
			if err != nil {
				return nil, fmt.Errorf("tier %s: invalid multiplier %q: %w", t.Name, t.Multiplier, err)
			}
			p.Tiers = append(p.Tiers, core.Tier{Name: t.Name, MinPoints: t.MinPoints, Multiplier: m})
		}
	}

	seen := make(map[string]bool, len(f.Rewards))
	for _, r := range f.Rewards {
		if r.ID == "" {
			return nil, fmt.Errorf("reward %q has no id", r.Name)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate reward id %s", r.ID)
		}
		seen[r.ID] = true

		vt := core.RewardValueType(r.ValueType)
		switch vt {
		case core.RewardFlatDiscount, core.RewardStoreCredit, core.RewardFreeShipping, core.RewardProduct:
		default:
			return nil, fmt.Errorf("reward %s: unknown value_type %q", r.ID, r.ValueType)
		}
		value := decimal.Zero
		if r.Value != "" {
			v, err := decimal.NewFromString(r.Value)
			if err != nil {
				return nil, fmt.Errorf("reward %s: invalid value %q: %w", r.ID, r.Value, err)
			}
			value = core.RoundMoney(v)
		}
		validUntil, err := parseDate(r.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("reward %s: invalid valid_until %q: %w", r.ID, r.ValidUntil, err)
		}
		p.Rewards = append(p.Rewards, core.RewardDefinition{
			ID:             r.ID,
			Name:           r.Name,
			PointsRequired: r.PointsRequired,
			ValueType:      vt,
			Value:          value,
			ValidUntil:     validUntil,
		})
	}
	return p, nil
}

// parseDate accepts RFC 3339 or a bare date, which is valid through the end of that day (UTC).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Nanosecond), nil
}
