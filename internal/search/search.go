// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package search aggregates subtitle candidates across all enabled providers,
// with result caching and request coalescing so a burst of identical player
// requests hits each provider at most once.
package search

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/subgloss/subgloss/internal/models"
	"github.com/subgloss/subgloss/internal/providers"
)

const (
	// completedCacheSize bounds the number of finished searches kept around.
	completedCacheSize = 5000
	// completedCacheTTL is refreshed on every hit, so an actively watched
	// title stays cached while idle entries age out.
	completedCacheTTL = time.Hour

	// failureCacheSize / failureCacheTTL form a short negative cache: a search
	// that just came back empty-handed is not retried for a few seconds, which
	// absorbs player retry storms without hammering providers.
	failureCacheSize = 200
	failureCacheTTL  = 5 * time.Second
)

// Options tune the aggregator.
type Options struct {
	// SearchTimeout caps each provider's search call.
	SearchTimeout time.Duration
	// ExcludeHearingImpaired drops SDH/HI candidates from results.
	ExcludeHearingImpaired bool
}

// Aggregator fans a search out to every provider, merges the results, and
// caches the merged set.
type Aggregator struct {
	registry *providers.Registry
	opts     Options

	completed *expirable.LRU[string, []models.SubtitleCandidate]
	failed    *expirable.LRU[string, struct{}]
	group     singleflight.Group
}

// NewAggregator builds an aggregator over the given provider registry.
func NewAggregator(registry *providers.Registry, opts Options) *Aggregator {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 12 * time.Second
	}
	return &Aggregator{
		registry:  registry,
		opts:      opts,
		completed: expirable.NewLRU[string, []models.SubtitleCandidate](completedCacheSize, nil, completedCacheTTL),
		failed:    expirable.NewLRU[string, struct{}](failureCacheSize, nil, failureCacheTTL),
	}
}

// Search returns the merged, filtered candidate set for the given parameters.
// Provider failures are tolerated: each provider contributes what it can, and
// only a fully empty result with zero reachable providers is cached negatively.
// The returned slice is owned by the caller.
func (a *Aggregator) Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	key := params.Key()

	if cached, ok := a.completed.Get(key); ok {
		// Re-adding refreshes the TTL so hot entries never expire mid-binge.
		a.completed.Add(key, cached)
		return slices.Clone(cached), nil
	}

	if _, ok := a.failed.Get(key); ok {
		return nil, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		results := a.fanOut(ctx, params)
		results = a.filter(results, params)

		if len(results) == 0 {
			a.failed.Add(key, struct{}{})
		} else {
			a.completed.Add(key, results)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.SubtitleCandidate)), nil
}

// fanOut queries every provider in parallel and collects whatever arrives
// before each provider's deadline. A failed provider is logged and skipped.
func (a *Aggregator) fanOut(ctx context.Context, params models.SearchParams) []models.SubtitleCandidate {
	provs := a.registry.Providers()

	type providerResult struct {
		candidates []models.SubtitleCandidate
		err        error
		tag        string
	}
	resultsChan := make(chan providerResult, len(provs))

	for _, p := range provs {
		go func(p providers.Provider) {
			searchCtx, cancel := context.WithTimeout(ctx, a.opts.SearchTimeout)
			defer cancel()

			candidates, err := p.Search(searchCtx, params)
			resultsChan <- providerResult{candidates: candidates, err: err, tag: p.Tag()}
		}(p)
	}

	var merged []models.SubtitleCandidate
	for range provs {
		res := <-resultsChan
		if res.err != nil {
			log.Warn().
				Err(res.err).
				Str("provider", res.tag).
				Str("imdbId", params.ImdbID).
				Msg("provider search failed")
			continue
		}
		merged = append(merged, res.candidates...)
	}
	return merged
}

// filter drops candidates the caller cannot use: unrecognized languages,
// languages outside the requested set, HI subtitles when excluded, and season
// packs that do not cover the requested episode.
func (a *Aggregator) filter(candidates []models.SubtitleCandidate, params models.SearchParams) []models.SubtitleCandidate {
	wanted := make(map[string]bool, len(params.Languages))
	for _, lang := range params.Languages {
		wanted[lang] = true
	}

	out := make([]models.SubtitleCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.LanguageCode == "" || !wanted[c.LanguageCode] {
			continue
		}
		if a.opts.ExcludeHearingImpaired && c.HearingImpaired {
			continue
		}
		if params.IsEpisode() && c.IsSeasonPack && !c.CoversEpisode(params.Episode) {
			continue
		}
		out = append(out, c)
	}
	return out
}
