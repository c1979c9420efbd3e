package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8440", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TokenTTL)
	assert.NotEmpty(t, cfg.Database.DSN)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TOKEN_TTL", "1h")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, time.Hour, cfg.JWT.TokenTTL)
}
