package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 180*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 8, cfg.ClientIDTries)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins())
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadWith_MissingSecret(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.Error(t, err)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":                 "x",
		"ACCESS_TOKEN_TTL_MIN":       "15",
		"CORS_ORIGINS":               "http://a.example, http://b.example ,",
		"CLIENT_ID_ATTEMPTS":         "0",
		"RATE_LIMIT_CAPACITY":        "0",
		"RATE_LIMIT_REFILL_INTERVAL": "1m",
		"RATE_LIMIT_TTL":             "1s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, 1, cfg.ClientIDTries)
	assert.Equal(t, 1, cfg.RateLimit.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)
}

func TestLoadWith_RejectsNonPositiveTTL(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "x",
		"ACCESS_TOKEN_TTL_MIN": "-5",
	}))
	require.Error(t, err)
}
