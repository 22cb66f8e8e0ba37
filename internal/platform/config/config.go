package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	Environment        string
	RunMigrations      bool
	RunSeed            bool
	MigrationsDir      string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	PayrollWorkers     int
	PayslipDir         string
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Environment:        getEnv("APP_ENV", "development"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		PayrollWorkers:     getEnvInt("PAYROLL_WORKERS", 8),
		PayslipDir:         getEnv("PAYSLIP_DIR", "payslips"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if strings.TrimSpace(c.PayslipDir) == "" {
		return fmt.Errorf("PAYSLIP_DIR is required")
	}
	if c.RunMigrations && strings.TrimSpace(c.MigrationsDir) == "" {
		return fmt.Errorf("MIGRATIONS_DIR is required when RUN_MIGRATIONS is enabled")
	}
	return nil
}
