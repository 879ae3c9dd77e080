package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Default Values", func(t *testing.T) {
		cfg, err := LoadConfig()
		assert.NoError(t, err)
		assert.Equal(t, "local", cfg.AppEnv)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 8, cfg.ShortCodeLength)
		assert.Equal(t, 5, cfg.ShortCodeMaxAttempts)
		assert.Equal(t, RecordModeAsync, cfg.ClickRecordMode)
		assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
		assert.False(t, cfg.EnforceLinkState)
		assert.Empty(t, cfg.ClickConsumer)
	})

	t.Run("Environment Variables", func(t *testing.T) {
		os.Setenv("PORT", "9999")
		os.Setenv("SHORT_CODE_MAX_ATTEMPTS", "3")
		os.Setenv("ENFORCE_LINK_STATE", "true")
		os.Setenv("JWT_TTL", "90m")
		os.Setenv("CLICK_CONSUMER", "recorder-a")
		defer os.Unsetenv("CLICK_CONSUMER")
		defer os.Unsetenv("PORT")
		defer os.Unsetenv("SHORT_CODE_MAX_ATTEMPTS")
		defer os.Unsetenv("ENFORCE_LINK_STATE")
		defer os.Unsetenv("JWT_TTL")

		cfg, err := LoadConfig()
		assert.NoError(t, err)
		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 3, cfg.ShortCodeMaxAttempts)
		assert.True(t, cfg.EnforceLinkState)
		assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
		assert.Equal(t, "recorder-a", cfg.ClickConsumer)
	})

	t.Run("Invalid Record Mode", func(t *testing.T) {
		os.Setenv("CLICK_RECORD_MODE", "eventually")
		defer os.Unsetenv("CLICK_RECORD_MODE")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "CLICK_RECORD_MODE")
	})
}

func TestValidate(t *testing.T) {
	base := Config{
		ClickRecordMode:      RecordModeSync,
		ShortCodeLength:      8,
		ShortCodeMaxAttempts: 5,
		ClickBufferSize:      10,
	}
	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"code too short", func(c *Config) { c.ShortCodeLength = 6 }},
		{"code too long", func(c *Config) { c.ShortCodeLength = 15 }},
		{"no attempts", func(c *Config) { c.ShortCodeMaxAttempts = 0 }},
		{"no buffer", func(c *Config) { c.ClickBufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
