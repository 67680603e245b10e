// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/subgloss/subgloss/internal/api"
	"github.com/subgloss/subgloss/internal/buildinfo"
	"github.com/subgloss/subgloss/internal/cache"
	"github.com/subgloss/subgloss/internal/config"
	"github.com/subgloss/subgloss/internal/domain"
	"github.com/subgloss/subgloss/internal/logger"
	"github.com/subgloss/subgloss/internal/metrics"
	"github.com/subgloss/subgloss/internal/orchestrator"
	"github.com/subgloss/subgloss/internal/providers"
	"github.com/subgloss/subgloss/internal/search"
	"github.com/subgloss/subgloss/internal/translate"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the subtitle addon server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file or directory (created with defaults when missing)")
	return cmd
}

func runServer(cmdCtx context.Context, configPath string) error {
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appConfig, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := appConfig.Get()
	cfg.Version = buildinfo.Version

	logger.Setup(cfg)
	appConfig.Watch()

	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Msg("starting subgloss")

	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("no Gemini API key configured, translation requests will fail")
	} else {
		log.Debug().
			Str("model", cfg.GeminiModel).
			Str("apiKey", domain.RedactString(cfg.GeminiAPIKey)).
			Msg("translation engine configured")
	}

	httpClient := providers.NewHTTPClient()
	registry := providers.NewRegistry(cfg, httpClient)
	if len(registry.Providers()) == 0 {
		log.Warn().Msg("no subtitle providers enabled, search results will be empty")
	}

	aggregator := search.NewAggregator(registry, search.Options{
		SearchTimeout:          cfg.ProviderTimeout(),
		ExcludeHearingImpaired: cfg.ExcludeHearingImpairedSubtitles,
	})

	store, err := cache.New(cfg.CacheDir, cache.Options{
		TranslationTTL:           cfg.TranslationTTL(),
		BypassTTL:                cfg.BypassTTL(),
		MaxBytes:                 cfg.MaxCacheSizeBytes,
		ClearTranslationsOnStart: !cfg.TranslationCache.Persistent,
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	sweeperStop := make(chan struct{})
	go store.StartSweeper(sweeperStop)
	defer close(sweeperStop)

	gemini := translate.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, nil)
	engine := translate.NewEngine(gemini, translate.Options{})

	orch := orchestrator.New(registry, engine, store, orchestrator.Options{
		DisableTranslationCache: !cfg.TranslationCache.Enabled,
		DisableBypass:           !cfg.BypassCache.Enabled,
	})

	if cfg.MetricsEnabled {
		manager := metrics.NewManager(store, orch)
		metricsServer := metrics.NewServer(manager, cfg.MetricsHost, cfg.MetricsPort)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	server := api.NewServer(api.Dependencies{
		Config:     cfg,
		Search:     aggregator,
		Downloader: registry,
		Translator: orch,
	})
	return server.Start(ctx)
}
