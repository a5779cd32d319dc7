package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "83.00", cfg.PaymentRate)
	assert.Equal(t, 2*time.Hour, cfg.RateCacheTTL)
	assert.Equal(t, time.Second, cfg.LoginDelay)
	assert.Equal(t, 3*time.Second, cfg.ConversionDelay)
	assert.Equal(t, 5*time.Second, cfg.NotificationTTL)
	assert.Equal(t, 0.3, cfg.SweepProbability)
	assert.Equal(t, 0.05, cfg.AlertProbability)
	assert.True(t, cfg.SeedDemoUser)
	assert.False(t, cfg.Simulate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOGIN_DELAY", "0s")
	t.Setenv("SWEEP_PROBABILITY", "1")
	t.Setenv("SIMULATE", "true")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg := Load()

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Duration(0), cfg.LoginDelay)
	assert.Equal(t, 1.0, cfg.SweepProbability)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "localstorage")
	assert.Equal(t, "memory", Load().StoreBackend)
}

func TestLoad_NonPositiveIntervals(t *testing.T) {
	t.Setenv("SIMULATE", "true")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("ALERT_INTERVAL", "-5s")
	t.Setenv("JWT_TTL", "0s")

	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.AlertInterval)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
}
