// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache is the on-disk translation cache. Entries are JSON documents
// in per-partition directories under a single cache root, written atomically
// so a crash never leaves a torn file behind.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// Partition selects one of the cache namespaces. They differ only in
// directory and lifetime.
type Partition string

const (
	// PartitionTranslation holds finished shared translations.
	PartitionTranslation Partition = "translation"
	// PartitionBypass holds per-user translations made with custom settings.
	PartitionBypass Partition = "bypass"
	// PartitionPartial holds in-progress streaming snapshots.
	PartitionPartial Partition = "partial"
)

var partitionDirs = map[Partition]string{
	PartitionTranslation: "translations",
	PartitionBypass:      "translations_bypass",
	PartitionPartial:     "translations_partial",
}

// Keys longer than this are truncated and suffixed with a digest so every
// stored name stays a sane filename on any filesystem.
const (
	maxKeyBytes      = 200
	truncatedKeyBase = 150
	// digestHexLen keeps truncated names under maxKeyBytes so sanitizing is
	// idempotent.
	digestHexLen = 32
)

// evictTargetRatio is how far below the size cap eviction drains the cache.
const evictTargetRatio = 0.9

// Entry is one cached translation document.
type Entry struct {
	Key            string     `json:"key"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	SourceFileID   string     `json:"sourceFileId"`
	TargetLanguage string     `json:"targetLanguage"`
	ConfigHash     string     `json:"configHash,omitempty"`
	IsError        bool       `json:"isError,omitempty"`
	ErrorType      string     `json:"errorType,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
}

// Expired reports whether the entry's lifetime has passed. Entries without an
// expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Options configure a Store.
type Options struct {
	// TranslationTTL is the lifetime of shared translations; zero means they
	// are kept until evicted for space.
	TranslationTTL time.Duration
	// BypassTTL is the lifetime of per-user bypass translations.
	BypassTTL time.Duration
	// PartialTTL is the lifetime of streaming snapshots.
	PartialTTL time.Duration
	// MaxBytes caps the total size of all partitions; exceeding it evicts the
	// least recently read entries. Zero disables the cap.
	MaxBytes int64
	// ClearTranslationsOnStart drops translations left by earlier runs, for
	// deployments that configure the cache as non-persistent.
	ClearTranslationsOnStart bool
}

// Store reads and writes cache entries under a root directory.
type Store struct {
	root string
	opts Options

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

// New creates the partition directories and returns a ready store.
func New(root string, opts Options) (*Store, error) {
	if opts.BypassTTL <= 0 {
		opts.BypassTTL = 12 * time.Hour
	}
	if opts.PartialTTL <= 0 {
		opts.PartialTTL = time.Hour
	}

	for _, dir := range partitionDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	if opts.ClearTranslationsOnStart {
		base := filepath.Join(root, partitionDirs[PartitionTranslation])
		files, err := os.ReadDir(base)
		if err != nil {
			return nil, fmt.Errorf("read cache dir: %w", err)
		}
		for _, f := range files {
			_ = os.Remove(filepath.Join(base, f.Name()))
		}
		if len(files) > 0 {
			log.Info().Int("removed", len(files)).Msg("cleared non-persistent translation cache")
		}
	}

	return &Store{root: root, opts: opts}, nil
}

// Get loads an entry, expiring it on read. A hit refreshes the file's access
// marker so space eviction is least-recently-read.
func (s *Store) Get(partition Partition, key string) (*Entry, bool) {
	path, err := s.entryPath(partition, key)
	if err != nil {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("removing corrupt cache entry")
		_ = os.Remove(path)
		s.misses.Add(1)
		return nil, false
	}

	if entry.Expired(time.Now()) {
		_ = os.Remove(path)
		s.expired.Add(1)
		s.misses.Add(1)
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)

	s.hits.Add(1)
	return &entry, true
}

// Put writes an entry atomically, stamping CreatedAt and the partition's
// expiry. The entry's Key is replaced by its sanitized form.
func (s *Store) Put(partition Partition, entry *Entry) error {
	path, err := s.entryPath(partition, entry.Key)
	if err != nil {
		return err
	}

	entry.Key = SanitizeKey(entry.Key)
	entry.CreatedAt = time.Now()
	if ttl := s.ttlFor(partition); ttl > 0 {
		expires := entry.CreatedAt.Add(ttl)
		entry.ExpiresAt = &expires
	} else {
		entry.ExpiresAt = nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	s.maybeEvict()
	return nil
}

// Delete removes an entry. Missing entries are not an error.
func (s *Store) Delete(partition Partition, key string) error {
	path, err := s.entryPath(partition, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) ttlFor(partition Partition) time.Duration {
	switch partition {
	case PartitionBypass:
		return s.opts.BypassTTL
	case PartitionPartial:
		return s.opts.PartialTTL
	default:
		return s.opts.TranslationTTL
	}
}

// entryPath resolves the on-disk location for a key and rejects anything that
// would escape the partition directory.
func (s *Store) entryPath(partition Partition, key string) (string, error) {
	dir, ok := partitionDirs[partition]
	if !ok {
		return "", fmt.Errorf("unknown cache partition %q", partition)
	}

	base := filepath.Join(s.root, dir)
	path := filepath.Join(base, SanitizeKey(key)+".json")
	if filepath.Dir(path) != base {
		return "", fmt.Errorf("cache key %q escapes partition directory", key)
	}
	return path, nil
}

// SanitizeKey maps an arbitrary cache key onto a safe filename: path
// separators and anything outside [A-Za-z0-9_-] become underscores, ".."
// sequences are stripped first, and overlong keys are truncated with a SHA-256
// suffix so distinct keys stay distinct. Sanitizing is idempotent.
func SanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "..", "")

	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()

	if len(out) > maxKeyBytes {
		sum := sha256.Sum256([]byte(out))
		out = out[:truncatedKeyBase] + "_" + hex.EncodeToString(sum[:])[:digestHexLen]
	}
	return out
}

// Stats is a point-in-time view of cache activity for metrics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Bytes     int64
	Entries   map[Partition]int
}

// Stats walks the partitions to report current usage alongside the counters.
func (s *Store) Stats() Stats {
	stats := Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Expired:   s.expired.Load(),
		Entries:   make(map[Partition]int, len(partitionDirs)),
	}

	for partition, dir := range partitionDirs {
		files, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			stats.Entries[partition]++
			stats.Bytes += info.Size()
		}
	}
	return stats
}

// Sweep removes expired and corrupt entries from every partition. It runs at
// startup and then hourly from StartSweeper.
func (s *Store) Sweep() {
	now := time.Now()
	removed := 0

	for _, dir := range partitionDirs {
		base := filepath.Join(s.root, dir)
		files, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(base, f.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil || entry.Expired(now) {
				if os.Remove(path) == nil {
					removed++
					s.expired.Add(1)
				}
			}
		}
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("cache sweep removed expired entries")
	}
}

// StartSweeper sweeps immediately, then hourly until stop is closed.
func (s *Store) StartSweeper(stop <-chan struct{}) {
	s.Sweep()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

type agedFile struct {
	path    string
	size    int64
	touched time.Time
}

// maybeEvict enforces the size cap by deleting least-recently-read entries
// until usage drops to the eviction target.
func (s *Store) maybeEvict() {
	if s.opts.MaxBytes <= 0 {
		return
	}

	var files []agedFile
	var total int64

	for _, dir := range partitionDirs {
		base := filepath.Join(s.root, dir)
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, f := range entries {
			info, err := f.Info()
			if err != nil || f.IsDir() {
				continue
			}
			files = append(files, agedFile{
				path:    filepath.Join(base, f.Name()),
				size:    info.Size(),
				touched: info.ModTime(),
			})
			total += info.Size()
		}
	}

	if total <= s.opts.MaxBytes {
		return
	}

	target := int64(float64(s.opts.MaxBytes) * evictTargetRatio)
	sort.Slice(files, func(i, j int) bool { return files[i].touched.Before(files[j].touched) })

	for _, f := range files {
		if total <= target {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		total -= f.size
		s.evictions.Add(1)
	}

	log.Info().
		Int64("bytes", total).
		Int64("cap", s.opts.MaxBytes).
		Msg("cache eviction complete")
}
