package payroll

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveRateConfigPicksMostRecentEffective(t *testing.T) {
	older := DefaultRateConfig()
	older.ID = "older"
	older.EffectiveFrom = date(2023, time.July, 1)

	newer := DefaultRateConfig()
	newer.ID = "newer"
	newer.EffectiveFrom = date(2024, time.July, 1)

	got, err := ResolveRateConfig([]RateConfig{older, newer}, date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "newer" {
		t.Fatalf("expected newer config to win, got %s", got.ID)
	}

	// Before the newer window opens, the older one is authoritative.
	got, err = ResolveRateConfig([]RateConfig{older, newer}, date(2024, time.January, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "older" {
		t.Fatalf("expected older config before newer window, got %s", got.ID)
	}
}

func TestResolveRateConfigIgnoresInactiveAndExpired(t *testing.T) {
	inactive := DefaultRateConfig()
	inactive.ID = "inactive"
	inactive.Active = false

	expiredEnd := date(2024, time.June, 30)
	expired := DefaultRateConfig()
	expired.ID = "expired"
	expired.EffectiveFrom = date(2023, time.July, 1)
	expired.EffectiveTo = &expiredEnd

	_, err := ResolveRateConfig([]RateConfig{inactive, expired}, date(2025, time.January, 1))
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestResolveRateConfigTieBreaksOnCreatedAt(t *testing.T) {
	first := DefaultRateConfig()
	first.ID = "first"
	first.CreatedAt = date(2024, time.June, 1)

	second := DefaultRateConfig()
	second.ID = "second"
	second.CreatedAt = date(2024, time.June, 15)

	got, err := ResolveRateConfig([]RateConfig{first, second}, date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "second" {
		t.Fatalf("expected most recently created config on equal effective_from, got %s", got.ID)
	}
}

func TestResolveRateConfigEmpty(t *testing.T) {
	_, err := ResolveRateConfig(nil, date(2025, time.January, 1))
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}
