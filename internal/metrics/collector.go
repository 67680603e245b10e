// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subgloss/subgloss/internal/cache"
)

// CacheStatsSource exposes cache activity; *cache.Store implements it.
type CacheStatsSource interface {
	Stats() cache.Stats
}

// TranslationSource exposes translation activity; the orchestrator
// implements it.
type TranslationSource interface {
	InProgress() int
}

// ServiceCollector pulls live counters from the cache and orchestrator on
// every scrape.
type ServiceCollector struct {
	cacheStats   CacheStatsSource
	translations TranslationSource

	cacheHitsDesc      *prometheus.Desc
	cacheMissesDesc    *prometheus.Desc
	cacheEvictionsDesc *prometheus.Desc
	cacheExpiredDesc   *prometheus.Desc
	cacheBytesDesc     *prometheus.Desc
	cacheEntriesDesc   *prometheus.Desc
	inProgressDesc     *prometheus.Desc
}

func NewServiceCollector(cacheStats CacheStatsSource, translations TranslationSource) *ServiceCollector {
	return &ServiceCollector{
		cacheStats:   cacheStats,
		translations: translations,

		cacheHitsDesc: prometheus.NewDesc(
			"subgloss_cache_hits_total",
			"Total translation cache hits",
			nil,
			nil,
		),
		cacheMissesDesc: prometheus.NewDesc(
			"subgloss_cache_misses_total",
			"Total translation cache misses",
			nil,
			nil,
		),
		cacheEvictionsDesc: prometheus.NewDesc(
			"subgloss_cache_evictions_total",
			"Total cache entries evicted for space",
			nil,
			nil,
		),
		cacheExpiredDesc: prometheus.NewDesc(
			"subgloss_cache_expired_total",
			"Total cache entries removed after TTL expiry",
			nil,
			nil,
		),
		cacheBytesDesc: prometheus.NewDesc(
			"subgloss_cache_size_bytes",
			"Total size of the on-disk translation cache",
			nil,
			nil,
		),
		cacheEntriesDesc: prometheus.NewDesc(
			"subgloss_cache_entries",
			"Number of cache entries by partition",
			[]string{"partition"},
			nil,
		),
		inProgressDesc: prometheus.NewDesc(
			"subgloss_translations_in_progress",
			"Number of background translations currently running",
			nil,
			nil,
		),
	}
}

func (c *ServiceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheHitsDesc
	ch <- c.cacheMissesDesc
	ch <- c.cacheEvictionsDesc
	ch <- c.cacheExpiredDesc
	ch <- c.cacheBytesDesc
	ch <- c.cacheEntriesDesc
	ch <- c.inProgressDesc
}

func (c *ServiceCollector) Collect(ch chan<- prometheus.Metric) {
	if c.cacheStats != nil {
		stats := c.cacheStats.Stats()

		ch <- prometheus.MustNewConstMetric(c.cacheHitsDesc, prometheus.CounterValue, float64(stats.Hits))
		ch <- prometheus.MustNewConstMetric(c.cacheMissesDesc, prometheus.CounterValue, float64(stats.Misses))
		ch <- prometheus.MustNewConstMetric(c.cacheEvictionsDesc, prometheus.CounterValue, float64(stats.Evictions))
		ch <- prometheus.MustNewConstMetric(c.cacheExpiredDesc, prometheus.CounterValue, float64(stats.Expired))
		ch <- prometheus.MustNewConstMetric(c.cacheBytesDesc, prometheus.GaugeValue, float64(stats.Bytes))

		for partition, count := range stats.Entries {
			ch <- prometheus.MustNewConstMetric(c.cacheEntriesDesc, prometheus.GaugeValue, float64(count), string(partition))
		}
	}

	if c.translations != nil {
		ch <- prometheus.MustNewConstMetric(c.inProgressDesc, prometheus.GaugeValue, float64(c.translations.InProgress()))
	}
}
