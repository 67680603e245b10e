// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/subgloss/subgloss/internal/domain"
)

const envPrefix = "SUBGLOSS__"

// AppConfig wraps the parsed configuration and the viper instance that loaded
// it, so the config file can be watched for live changes.
type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper

	mu sync.RWMutex
}

// New loads configuration from the given path. If configPath points to a
// directory (or is empty), config.toml inside it is used and created with
// defaults when missing. Environment variables prefixed with SUBGLOSS__
// override file values.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Host:                    "0.0.0.0",
		Port:                    7788,
		LogLevel:                "INFO",
		LogMaxSize:              50,
		LogMaxBackups:           3,
		CacheDir:                defaultCacheDir(),
		SourceLanguages:         []string{"eng"},
		TargetLanguages:         nil,
		GeminiModel:             "gemini-2.5-flash",
		MetricsHost:             "127.0.0.1",
		MetricsPort:             9074,
		MinSubtitleSizeBytes:    200,
		SubtitleProviderTimeout: 12,
		MaxCacheSizeBytes:       50 << 30,
		TranslationCache: domain.TranslationCacheConfig{
			Enabled:    true,
			Persistent: true,
		},
		BypassCache: domain.BypassCacheConfig{
			Enabled:       true,
			DurationHours: 12,
		},
	}

	c.viper.SetDefault("host", c.Config.Host)
	c.viper.SetDefault("port", c.Config.Port)
	c.viper.SetDefault("logLevel", c.Config.LogLevel)
	c.viper.SetDefault("logMaxSize", c.Config.LogMaxSize)
	c.viper.SetDefault("logMaxBackups", c.Config.LogMaxBackups)
	c.viper.SetDefault("cacheDir", c.Config.CacheDir)
	c.viper.SetDefault("sourceLanguages", c.Config.SourceLanguages)
	c.viper.SetDefault("geminiModel", c.Config.GeminiModel)
	c.viper.SetDefault("metricsHost", c.Config.MetricsHost)
	c.viper.SetDefault("metricsPort", c.Config.MetricsPort)
	c.viper.SetDefault("minSubtitleSizeBytes", c.Config.MinSubtitleSizeBytes)
	c.viper.SetDefault("subtitleProviderTimeout", c.Config.SubtitleProviderTimeout)
	c.viper.SetDefault("maxCacheSizeBytes", c.Config.MaxCacheSizeBytes)
	c.viper.SetDefault("translationCache.enabled", true)
	c.viper.SetDefault("translationCache.persistent", true)
	c.viper.SetDefault("bypassCache.enabled", true)
	c.viper.SetDefault("bypassCache.durationHours", 12)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "subgloss")
	}
	return "subgloss-cache"
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")
	c.viper.SetEnvPrefix(strings.TrimSuffix(envPrefix, "__"))
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			configPath = filepath.Join(configPath, "config.toml")
		}
		c.viper.SetConfigFile(configPath)

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := c.writeDefaultConfig(configPath); err != nil {
				return err
			}
		}

		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	bindEnvOverrides(c.viper)

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	return nil
}

// bindEnvOverrides maps SUBGLOSS__SECTION_KEY env vars onto nested viper keys,
// which AutomaticEnv alone does not reach for unmarshal.
func bindEnvOverrides(v *viper.Viper) {
	for _, key := range []string{
		"host", "port", "baseUrl", "logLevel", "logPath", "cacheDir",
		"geminiApiKey", "geminiModel",
		"minSubtitleSizeBytes", "enableSeasonPacks",
		"excludeHearingImpairedSubtitles", "subtitleProviderTimeout",
		"maxCacheSizeBytes", "metricsEnabled", "metricsHost", "metricsPort",
		"translationCache.enabled", "translationCache.durationHours", "translationCache.persistent",
		"bypassCache.enabled", "bypassCache.durationHours",
		"providers.opensubtitles.enabled", "providers.opensubtitles.apiKey",
		"providers.opensubtitles.username", "providers.opensubtitles.password",
		"providers.subdl.enabled", "providers.subdl.apiKey",
		"providers.subsource.enabled", "providers.subsource.apiKey",
	} {
		envKey := envPrefix + strings.ToUpper(strings.NewReplacer(".", "_").Replace(toSnake(key)))
		//nolint:errcheck // BindEnv only errors on empty input
		v.BindEnv(key, envKey)
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '.' && s[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# subgloss configuration\n\n")
	sb.WriteString(fmt.Sprintf("host = %q\n", c.Config.Host))
	sb.WriteString(fmt.Sprintf("port = %d\n", c.Config.Port))
	sb.WriteString(fmt.Sprintf("logLevel = %q\n", c.Config.LogLevel))
	sb.WriteString(fmt.Sprintf("cacheDir = %q\n\n", c.Config.CacheDir))
	sb.WriteString("sourceLanguages = [\"eng\"]\n")
	sb.WriteString("targetLanguages = []\n\n")
	sb.WriteString("# geminiApiKey = \"\"\n")
	sb.WriteString(fmt.Sprintf("geminiModel = %q\n\n", c.Config.GeminiModel))
	sb.WriteString("[translationCache]\nenabled = true\npersistent = true\n\n")
	sb.WriteString("[bypassCache]\nenabled = true\ndurationHours = 12\n\n")
	sb.WriteString("[providers.opensubtitles]\nenabled = false\n# apiKey = \"\"\n\n")
	sb.WriteString("[providers.subdl]\nenabled = false\n# apiKey = \"\"\n\n")
	sb.WriteString("[providers.subsource]\nenabled = false\n# apiKey = \"\"\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("Created default config file")
	return nil
}

// Get returns the current configuration snapshot.
func (c *AppConfig) Get() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// Watch re-reads the config file on change and applies the settings that are
// safe to change at runtime (currently the log level).
func (c *AppConfig) Watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("file", e.Name).Msg("Config file changed, reloading")

		cfg := &domain.Config{}
		if err := c.viper.Unmarshal(cfg); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Error().Err(err).Msg("Reloaded config is invalid, keeping previous")
			return
		}

		c.mu.Lock()
		cfg.Version = c.Config.Version
		c.Config = cfg
		c.mu.Unlock()

		if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
	c.viper.WatchConfig()
}
