package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/migration"
)

// Seed is the operator-supplied data for the venue migration and the rent
// backfill.
type Seed struct {
	Plan           migration.Plan
	BackfillAmount decimal.Decimal
}

type seedFile struct {
	DefaultOwner   string `mapstructure:"default_owner"`
	BackfillAmount string `mapstructure:"backfill_amount"`
	Venues         []struct {
		Owner      string `mapstructure:"owner"`
		NightlyFee string `mapstructure:"nightly_fee"`
	} `mapstructure:"venues"`
}

// LoadSeed reads a seed file in any format viper understands (YAML, JSON,
// TOML).  Money values may be written as strings or numbers.
//
//	default_owner: House
//	backfill_amount: "330.00"
//	venues:
//	  - owner: House
//	    nightly_fee: "330.00"
func LoadSeed(path string) (Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var raw seedFile
	if err := v.Unmarshal(&raw); err != nil {
		return Seed{}, fmt.Errorf("decode seed file: %w", err)
	}

	var s Seed
	s.Plan.DefaultOwner = raw.DefaultOwner
	for i, ven := range raw.Venues {
		fee, err := decimal.NewFromString(ven.NightlyFee)
		if err != nil {
			return Seed{}, fmt.Errorf("venue %d (%s): nightly_fee %q: %w", i, ven.Owner, ven.NightlyFee, err)
		}
		s.Plan.Seeds = append(s.Plan.Seeds, migration.SeedVenue{Owner: ven.Owner, NightlyFee: fee})
	}
	if raw.BackfillAmount != "" {
		amt, err := decimal.NewFromString(raw.BackfillAmount)
		if err != nil {
			return Seed{}, fmt.Errorf("backfill_amount %q: %w", raw.BackfillAmount, err)
		}
		s.BackfillAmount = amt
	}
	if err := s.Plan.Validate(); err != nil {
		return Seed{}, err
	}
	return s, nil
}
