package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolveRateConfig selects the single authoritative configuration for a
// date: among active configs whose validity window contains the date, the
// one with the most recent EffectiveFrom wins. Overlapping windows are
// tolerated; CreatedAt breaks exact EffectiveFrom ties so the result stays
// deterministic. Returns ErrConfigurationMissing when nothing matches.
func ResolveRateConfig(configs []RateConfig, date time.Time) (RateConfig, error) {
	var winner RateConfig
	found := false
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		if cfg.EffectiveFrom.After(date) {
			continue
		}
		if cfg.EffectiveTo != nil && cfg.EffectiveTo.Before(date) {
			continue
		}
		if !found {
			winner = cfg
			found = true
			continue
		}
		if cfg.EffectiveFrom.After(winner.EffectiveFrom) ||
			(cfg.EffectiveFrom.Equal(winner.EffectiveFrom) && cfg.CreatedAt.After(winner.CreatedAt)) {
			winner = cfg
		}
	}
	if !found {
		return RateConfig{}, ErrConfigurationMissing
	}
	return winner, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultRateConfig returns the 2024/2025 KRA monthly figures. It backs the
// database seed and the calculator tests; production lookups go through the
// rate configuration store.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		Bands: []TaxBand{
			{UpperLimit: dec("24000"), Rate: dec("0.10")},
			{UpperLimit: dec("32333"), Rate: dec("0.25")},
			{UpperLimit: dec("500000"), Rate: dec("0.30")},
			{UpperLimit: dec("800000"), Rate: dec("0.325")},
			{Rate: dec("0.35")},
		},
		PersonalRelief:      dec("2400"),
		InsuranceReliefRate: dec("0.15"),
		InsuranceReliefCap:  dec("5000"),
		DisabilityExemption: dec("150000"),
		NSSFTier1Limit:      dec("7000"),
		NSSFTier1Rate:       dec("0.06"),
		NSSFTier2Limit:      dec("36000"),
		NSSFTier2Rate:       dec("0.06"),
		SHARate:             dec("0.0275"),
		HousingLevyRate:     dec("0.015"),
		PensionCap:          dec("20000"),
		MortgageInterestCap: dec("25000"),
		EffectiveFrom:       time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		Active:              true,
	}
}
