package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL_HOURS", "2")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenExpires)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "/storage", cfg.StorageURL)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET must be set")
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("JWT_TTL_HOURS", "soon")

	assert.Equal(t, time.Duration(24), getEnvDuration("JWT_TTL_HOURS", 24))
}
