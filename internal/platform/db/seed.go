package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Migiro-Johans/HRS/internal/domain/payroll"
)

// Seed installs the current statutory rates when the tax tables are empty,
// so a fresh deployment can run payroll without manual setup. Existing
// configurations are never touched.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureRateConfig(ctx, pool); err != nil {
		return err
	}
	return ensureDepartments(ctx, pool)
}

func ensureRateConfig(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM tax_tables").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	store := &payroll.Store{DB: pool}
	_, err := store.CreateRateConfig(ctx, payroll.DefaultRateConfig())
	return err
}

func ensureDepartments(ctx context.Context, pool *pgxpool.Pool) error {
	for _, name := range []string{"Administration", "Finance", "Operations"} {
		if _, err := pool.Exec(ctx, "INSERT INTO departments (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
			return err
		}
	}
	return nil
}
