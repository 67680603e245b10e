// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	CacheDir      string `toml:"cacheDir" mapstructure:"cacheDir"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// Default languages used when a request carries no per-user configuration.
	SourceLanguages []string `toml:"sourceLanguages" mapstructure:"sourceLanguages"`
	TargetLanguages []string `toml:"targetLanguages" mapstructure:"targetLanguages"`

	Providers ProvidersConfig `toml:"providers" mapstructure:"providers"`

	GeminiAPIKey string `toml:"geminiApiKey" mapstructure:"geminiApiKey"`
	GeminiModel  string `toml:"geminiModel" mapstructure:"geminiModel"`

	TranslationCache TranslationCacheConfig `toml:"translationCache" mapstructure:"translationCache"`
	BypassCache      BypassCacheConfig      `toml:"bypassCache" mapstructure:"bypassCache"`

	MinSubtitleSizeBytes            int  `toml:"minSubtitleSizeBytes" mapstructure:"minSubtitleSizeBytes"`
	EnableSeasonPacks               bool `toml:"enableSeasonPacks" mapstructure:"enableSeasonPacks"`
	ExcludeHearingImpairedSubtitles bool `toml:"excludeHearingImpairedSubtitles" mapstructure:"excludeHearingImpairedSubtitles"`

	// SubtitleProviderTimeout bounds a single provider search call, in seconds.
	SubtitleProviderTimeout int `toml:"subtitleProviderTimeout" mapstructure:"subtitleProviderTimeout"`

	// MaxCacheSizeBytes is the soft cap for the permanent translation partition.
	MaxCacheSizeBytes int64 `toml:"maxCacheSizeBytes" mapstructure:"maxCacheSizeBytes"`
}

// ProvidersConfig holds per-provider enable flags and credentials.
type ProvidersConfig struct {
	OpenSubtitles OpenSubtitlesConfig `toml:"opensubtitles" mapstructure:"opensubtitles"`
	SubDL         APIKeyProvider      `toml:"subdl" mapstructure:"subdl"`
	SubSource     APIKeyProvider      `toml:"subsource" mapstructure:"subsource"`
}

// OpenSubtitlesConfig configures the OpenSubtitles REST provider. Username and
// password are optional; logging in raises the daily download quota.
type OpenSubtitlesConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	APIKey   string `toml:"apiKey" mapstructure:"apiKey"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
}

// APIKeyProvider configures a provider that authenticates with a bare API key.
type APIKeyProvider struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	APIKey  string `toml:"apiKey" mapstructure:"apiKey"`
}

// TranslationCacheConfig controls the permanent translation partition.
type TranslationCacheConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	// DurationHours bounds entry lifetime; 0 means permanent.
	DurationHours int  `toml:"durationHours" mapstructure:"durationHours"`
	Persistent    bool `toml:"persistent" mapstructure:"persistent"`
}

// BypassCacheConfig controls the user-scoped short-TTL partition.
type BypassCacheConfig struct {
	Enabled       bool `toml:"enabled" mapstructure:"enabled"`
	DurationHours int  `toml:"durationHours" mapstructure:"durationHours"`
}

// ProviderTimeout returns the per-call search timeout.
func (c *Config) ProviderTimeout() time.Duration {
	if c.SubtitleProviderTimeout <= 0 {
		return 12 * time.Second
	}
	return time.Duration(c.SubtitleProviderTimeout) * time.Second
}

// BypassTTL returns the bypass partition entry lifetime.
func (c *Config) BypassTTL() time.Duration {
	if c.BypassCache.DurationHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.BypassCache.DurationHours) * time.Hour
}

// TranslationTTL returns the permanent partition entry lifetime; 0 means no expiry.
func (c *Config) TranslationTTL() time.Duration {
	if c.TranslationCache.DurationHours <= 0 {
		return 0
	}
	return time.Duration(c.TranslationCache.DurationHours) * time.Hour
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel %q", c.LogLevel)
	}
	if c.CacheDir == "" {
		return errors.New("cacheDir is required")
	}
	if c.MinSubtitleSizeBytes < 0 {
		return fmt.Errorf("invalid minSubtitleSizeBytes %d", c.MinSubtitleSizeBytes)
	}
	return nil
}
