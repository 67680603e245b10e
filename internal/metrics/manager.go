// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Manager owns the prometheus registry and the service collector.
type Manager struct {
	registry         *prometheus.Registry
	serviceCollector *ServiceCollector
}

// NewManager builds a registry with the standard Go and process collectors
// plus the service collector. Sources may be nil; their metrics are skipped.
func NewManager(cacheStats CacheStatsSource, translations TranslationSource) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	serviceCollector := NewServiceCollector(cacheStats, translations)
	registry.MustRegister(serviceCollector)

	log.Info().Msg("Metrics manager initialized with service collector")

	return &Manager{
		registry:         registry,
		serviceCollector: serviceCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
