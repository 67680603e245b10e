// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orchestrator drives on-demand subtitle translation: cache lookups,
// background translation with partial snapshots, and per-user concurrency
// limits. Every operation returns playable SRT text, never an error, because
// the player on the other end can only render subtitles.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/subgloss/subgloss/internal/cache"
	"github.com/subgloss/subgloss/internal/models"
	"github.com/subgloss/subgloss/internal/providers"
	"github.com/subgloss/subgloss/internal/subtitle"
	"github.com/subgloss/subgloss/internal/translate"
)

const (
	// maxTranslationsPerUser caps concurrent background work per user hash.
	maxTranslationsPerUser = 3

	// inflightSize / inflightTTL bound the in-flight registry; the TTL
	// defends against orphaned tasks that never cleaned up.
	inflightSize = 1000
	inflightTTL  = 30 * time.Minute

	statusTTL    = 10 * time.Minute
	userCountTTL = 24 * time.Hour

	// Partial snapshot pacing: the first write lands after firstFlushDelay,
	// later writes at most every flushInterval.
	firstFlushDelay = 15 * time.Second
	flushInterval   = 30 * time.Second
)

// Downloader fetches subtitle content by routable file id.
type Downloader interface {
	Download(ctx context.Context, fileID string) (string, error)
}

// Translator converts SRT text to a target language.
type Translator interface {
	Translate(ctx context.Context, srt, targetLanguage string, progress translate.Progress) (string, error)
}

// Status describes one running translation.
type Status struct {
	SourceFileID   string
	TargetLanguage string
	UserHash       string
	StartedAt      time.Time
}

// Options tune the orchestrator; zero values take the defaults above.
type Options struct {
	// DownloadTimeout caps the source subtitle fetch.
	DownloadTimeout time.Duration
	// FirstFlushDelay / FlushInterval override partial snapshot pacing
	// (tests shrink them).
	FirstFlushDelay time.Duration
	FlushInterval   time.Duration

	// DisableTranslationCache keeps shared results out of the durable
	// translation partition. Finished translations and errors are routed
	// through the short-TTL partial partition instead, so the requester
	// still gets the result but nothing outlives the partial TTL.
	DisableTranslationCache bool
	// DisableBypass ignores per-user bypass requests; everyone shares the
	// translation partition.
	DisableBypass bool
}

// Orchestrator coordinates translations across cache, providers, and engine.
type Orchestrator struct {
	downloader Downloader
	translator Translator
	store      *cache.Store
	opts       Options

	mu       sync.Mutex
	inflight *expirable.LRU[string, *Status]

	status    *ttlcache.Cache[string, *Status]
	userCount *ttlcache.Cache[string, int]
}

// New builds an orchestrator.
func New(downloader Downloader, translator Translator, store *cache.Store, opts Options) *Orchestrator {
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 18 * time.Second
	}
	if opts.FirstFlushDelay <= 0 {
		opts.FirstFlushDelay = firstFlushDelay
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = flushInterval
	}

	return &Orchestrator{
		downloader: downloader,
		translator: translator,
		store:      store,
		opts:       opts,
		inflight:   expirable.NewLRU[string, *Status](inflightSize, nil, inflightTTL),
		status:     ttlcache.New(ttlcache.Options[string, *Status]{}.SetDefaultTTL(statusTTL)),
		userCount:  ttlcache.New(ttlcache.Options[string, int]{}.SetDefaultTTL(userCountTTL)),
	}
}

// CacheKey builds the cache key for a translation, user-scoped when bypass
// mode applies. Users without a config hash share the anonymous scope.
func CacheKey(sourceFileID, targetLanguage string, user *models.UserConfig) (string, cache.Partition) {
	key := sourceFileID + "_" + targetLanguage
	if user != nil && user.BypassCache {
		return key + "__u_" + user.UserHash(), cache.PartitionBypass
	}
	return key, cache.PartitionTranslation
}

// cacheKey applies the server-side cache policy on top of CacheKey: bypass
// requests are ignored when bypass mode is disabled, and shared entries move
// to the partial partition when the translation cache is disabled.
func (o *Orchestrator) cacheKey(sourceFileID, targetLanguage string, user *models.UserConfig) (string, cache.Partition) {
	if o.opts.DisableBypass && user != nil && user.BypassCache {
		u := *user
		u.BypassCache = false
		user = &u
	}

	key, partition := CacheKey(sourceFileID, targetLanguage, user)
	if partition == cache.PartitionTranslation && o.opts.DisableTranslationCache {
		partition = cache.PartitionPartial
	}
	return key, partition
}

// HandleTranslation serves a translated subtitle for the source file. The
// first request starts a background translation and returns a loading SRT;
// followups serve partial snapshots until the final result is cached.
func (o *Orchestrator) HandleTranslation(ctx context.Context, sourceFileID, targetLanguage string, user *models.UserConfig) string {
	userHash := models.AnonymousUser
	if user != nil {
		userHash = user.UserHash()
	}
	key, partition := o.cacheKey(sourceFileID, targetLanguage, user)
	languageName := providers.LanguageDisplayName(targetLanguage)

	if srt, ok := o.serveCached(key, partition, userHash); ok {
		return srt
	}

	o.mu.Lock()
	if _, running := o.inflight.Get(key); running {
		o.mu.Unlock()
		return o.servePartialOrLoading(key, languageName)
	}

	count, _ := o.userCount.Get(userHash)
	if count >= maxTranslationsPerUser {
		o.mu.Unlock()
		log.Warn().Str("userHash", userHash).Msg("per-user translation limit reached")
		return subtitle.ConcurrencyLimitSRT()
	}

	status := &Status{
		SourceFileID:   sourceFileID,
		TargetLanguage: targetLanguage,
		UserHash:       userHash,
		StartedAt:      time.Now(),
	}
	o.userCount.Set(userHash, count+1, ttlcache.DefaultTTL)
	o.inflight.Add(key, status)
	o.status.Set(key, status, ttlcache.DefaultTTL)
	o.mu.Unlock()

	go o.runTranslation(key, partition, status, languageName)

	return subtitle.LoadingSRT(languageName)
}

// serveCached checks the final cache. Error entries are rendered once and
// deleted, so the user's next click retries the translation.
func (o *Orchestrator) serveCached(key string, partition cache.Partition, userHash string) (string, bool) {
	entry, ok := o.store.Get(partition, key)
	if !ok {
		return "", false
	}

	if partition == cache.PartitionBypass && entry.ConfigHash != userHash {
		return "", false
	}

	if entry.IsError {
		if err := o.store.Delete(partition, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to delete error entry")
		}
		return subtitle.ErrorSRT(entry.ErrorType, entry.ErrorMessage), true
	}
	return entry.Content, true
}

// servePartialOrLoading is the answer for requests that join a running
// translation: the latest partial snapshot if one exists, a loading screen
// otherwise.
func (o *Orchestrator) servePartialOrLoading(key, languageName string) string {
	if partial, ok := o.store.Get(cache.PartitionPartial, key); ok && partial.Content != "" {
		return partial.Content
	}
	return subtitle.LoadingSRT(languageName)
}

// runTranslation is the background task. It is deliberately detached from the
// originating request's context: players drop the connection immediately, but
// the translation runs to completion.
func (o *Orchestrator) runTranslation(key string, partition cache.Partition, status *Status, languageName string) {
	ctx := context.Background()
	start := time.Now()

	defer o.finish(key, status.UserHash)

	source, err := o.fetchSource(ctx, status.SourceFileID)
	if err != nil {
		o.storeError(key, partition, status, err)
		return
	}

	flusher := o.newPartialFlusher(key, status, start)

	translated, err := o.translator.Translate(ctx, source, languageName, flusher)
	if err != nil {
		o.storeError(key, partition, status, err)
		return
	}

	entry := &cache.Entry{
		Key:            key,
		Content:        translated,
		SourceFileID:   status.SourceFileID,
		TargetLanguage: status.TargetLanguage,
	}
	if partition == cache.PartitionBypass {
		entry.ConfigHash = status.UserHash
	}
	if err := o.store.Put(partition, entry); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to store translation")
	}

	// Final write lands before the partial disappears, so readers always see
	// one or the other. When the final itself lives in the partial partition
	// there is nothing left to clean up.
	if partition != cache.PartitionPartial {
		if err := o.store.Delete(cache.PartitionPartial, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to delete partial entry")
		}
	}

	log.Info().
		Str("sourceFileId", status.SourceFileID).
		Str("targetLanguage", status.TargetLanguage).
		Dur("elapsed", time.Since(start)).
		Msg("translation complete")
}

// fetchSource downloads the source subtitle with the download timeout.
func (o *Orchestrator) fetchSource(ctx context.Context, fileID string) (string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, o.opts.DownloadTimeout)
	defer cancel()
	return o.downloader.Download(dlCtx, fileID)
}

// newPartialFlusher returns a progress callback that persists snapshots to
// the partial partition, each with a trailing in-progress cue. Completed
// chunks flush immediately; mid-stream token deltas are throttled.
func (o *Orchestrator) newPartialFlusher(key string, status *Status, start time.Time) translate.Progress {
	var mu sync.Mutex
	var lastFlush time.Time

	return func(partial string, chunkDone bool) {
		if partial == "" {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if !chunkDone {
			if lastFlush.IsZero() {
				if time.Since(start) < o.opts.FirstFlushDelay {
					return
				}
			} else if time.Since(lastFlush) < o.opts.FlushInterval {
				return
			}
		}
		lastFlush = time.Now()

		entry := &cache.Entry{
			Key:            key,
			Content:        subtitle.AppendProgressTail(partial),
			SourceFileID:   status.SourceFileID,
			TargetLanguage: status.TargetLanguage,
		}
		if err := o.store.Put(cache.PartitionPartial, entry); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to flush partial translation")
		}
	}
}

// storeError persists a classified failure where the final result would have
// gone, so the next request can render it (and delete it for a retry).
func (o *Orchestrator) storeError(key string, partition cache.Partition, status *Status, err error) {
	terr := translate.Classify(o.mapProviderError(err))

	log.Error().
		Err(err).
		Str("sourceFileId", status.SourceFileID).
		Str("targetLanguage", status.TargetLanguage).
		Str("errorType", string(terr.Type)).
		Msg("translation failed")

	entry := &cache.Entry{
		Key:            key,
		SourceFileID:   status.SourceFileID,
		TargetLanguage: status.TargetLanguage,
		IsError:        true,
		ErrorType:      string(terr.Type),
		ErrorMessage:   terr.Message,
	}
	if partition == cache.PartitionBypass {
		entry.ConfigHash = status.UserHash
	}
	if err := o.store.Put(partition, entry); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to store error entry")
	}

	if partition != cache.PartitionPartial {
		if err := o.store.Delete(cache.PartitionPartial, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to delete partial entry")
		}
	}
}

// mapProviderError folds provider download failures into translation error
// types so the user-facing SRT names the real cause.
func (o *Orchestrator) mapProviderError(err error) error {
	switch {
	case errors.Is(err, providers.ErrTooSmall):
		return &translate.Error{Type: translate.ErrorInvalidSource, Message: "source subtitle below minimum size"}
	case errors.Is(err, providers.ErrArchiveTooLarge):
		return &translate.Error{Type: translate.ErrorInvalidSource, Message: "source subtitle archive too large"}
	case errors.Is(err, providers.ErrNotFound):
		return &translate.Error{Type: translate.ErrorInvalidSource, Message: "source subtitle no longer available"}
	default:
		return err
	}
}

// finish releases the per-key and per-user slots.
func (o *Orchestrator) finish(key, userHash string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.inflight.Remove(key)
	o.status.Delete(key)
	if count, ok := o.userCount.Get(userHash); ok && count > 0 {
		o.userCount.Set(userHash, count-1, ttlcache.DefaultTTL)
	}
}

// InProgress reports the number of running translations, for metrics.
func (o *Orchestrator) InProgress() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight.Len()
}
