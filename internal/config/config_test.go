package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, int32(16), cfg.PostgresMaxConns)
	assert.Equal(t, time.Hour, cfg.OrderHold)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ORDER_HOLD", "30m")
	t.Setenv("PAYMENT_CALLBACK_TOKEN", "cb-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.OrderHold)
	assert.Equal(t, "cb-token", cfg.Payment.CallbackToken)
}

func TestLoad_InvalidHold(t *testing.T) {
	t.Setenv("ORDER_HOLD", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "ORDER_HOLD")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
