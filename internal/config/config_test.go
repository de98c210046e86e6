package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"AMQP_URL", "STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "PAYMENT_CURRENCY",
		"BOOKING_LOCK_EXPIRY", "BOOKING_REAPER_INTERVAL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	// Server defaults
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Database defaults
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "bus_reservation", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	// Redis defaults
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6379", cfg.Redis.Port)
	assert.Equal(t, 0, cfg.Redis.DB)

	// Booking defaults
	assert.Equal(t, 15*time.Minute, cfg.Booking.LockExpiry)
	assert.Equal(t, 60*time.Second, cfg.Booking.ReaperInterval)

	// Payment defaults
	assert.Equal(t, "inr", cfg.Stripe.Currency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "9090")
	t.Setenv("DB_NAME", "bus_test")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("BOOKING_LOCK_EXPIRY", "5m")
	t.Setenv("BOOKING_REAPER_INTERVAL", "30s")
	t.Setenv("PAYMENT_CURRENCY", "jpy")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "bus_test", cfg.Database.DBName)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 5*time.Minute, cfg.Booking.LockExpiry)
	assert.Equal(t, 30*time.Second, cfg.Booking.ReaperInterval)
	assert.Equal(t, "jpy", cfg.Stripe.Currency)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	clearEnv(t)

	t.Setenv("BOOKING_LOCK_EXPIRY", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Booking.LockExpiry)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: "5432", User: "app", Password: "secret",
		DBName: "bus_reservation", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=bus_reservation sslmode=disable",
		cfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: "6380"}
	assert.Equal(t, "cache:6380", cfg.Addr())
}
