// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:     7788,
		LogLevel: "info",
		CacheDir: "/tmp/subgloss-cache",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())

	t.Run("rejects bad port", func(t *testing.T) {
		t.Parallel()

		for _, port := range []int{0, -1, 70000} {
			cfg := validConfig()
			cfg.Port = port
			assert.Error(t, cfg.Validate(), "port %d", port)
		}
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.LogLevel = "verbose"
		assert.Error(t, cfg.Validate())

		cfg.LogLevel = "DEBUG"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("requires cache dir", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.CacheDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects negative min subtitle size", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.MinSubtitleSizeBytes = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	// Zero values take the documented defaults.
	assert.Equal(t, 12*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, 12*time.Hour, cfg.BypassTTL())
	assert.Zero(t, cfg.TranslationTTL())

	cfg.SubtitleProviderTimeout = 5
	cfg.BypassCache.DurationHours = 6
	cfg.TranslationCache.DurationHours = 48

	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, 6*time.Hour, cfg.BypassTTL())
	assert.Equal(t, 48*time.Hour, cfg.TranslationTTL())
}
