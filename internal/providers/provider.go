// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package providers implements the subtitle provider adapters: search and
// download against each external service, language normalization, and archive
// extraction for providers that ship subtitles zipped.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/subgloss/subgloss/internal/domain"
	"github.com/subgloss/subgloss/internal/models"
)

// Default retry attempt counts. Search is cheap to retry; downloads less so.
const (
	SearchAttempts   = 3
	DownloadAttempts = 2
)

var (
	// ErrUnknownProvider means a fileId prefix matched no registered provider.
	ErrUnknownProvider = errors.New("unknown subtitle provider")
	// ErrNotFound means the provider no longer serves the requested file.
	ErrNotFound = errors.New("subtitle not found")
	// ErrTooSmall means the downloaded payload is below the minimum size.
	ErrTooSmall = errors.New("subtitle below minimum size")
	// ErrArchiveTooLarge means the provider returned an oversized archive.
	ErrArchiveTooLarge = errors.New("subtitle archive too large")
)

// Provider is one external subtitle source.
type Provider interface {
	// Tag is the short identity used as the fileId prefix (e.g. "os").
	Tag() string

	// Search returns candidates for the given parameters. Implementations
	// respect ctx for timeouts and return an error only for their own
	// bookkeeping; the aggregator treats any failure as an empty result.
	Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error)

	// Download fetches a subtitle by its provider-local id (the fileId with
	// the "<tag>-" prefix already stripped) and returns decoded SRT or VTT
	// text, with archives extracted.
	Download(ctx context.Context, providerFileID string) (string, error)
}

// Registry routes searches and downloads to registered providers.
type Registry struct {
	providers []Provider
	byTag     map[string]Provider
}

// NewRegistry builds the provider set from config. Providers without the
// credentials they need are skipped with a warning rather than failing later
// on every request.
func NewRegistry(cfg *domain.Config, client *http.Client) *Registry {
	r := &Registry{byTag: make(map[string]Provider)}

	if cfg.Providers.OpenSubtitles.Enabled {
		if cfg.Providers.OpenSubtitles.APIKey == "" {
			log.Warn().Msg("OpenSubtitles enabled without an API key, skipping provider")
		} else {
			r.register(NewOpenSubtitles(cfg.Providers.OpenSubtitles, cfg.MinSubtitleSizeBytes, client))
		}
	}
	if cfg.Providers.SubDL.Enabled {
		if cfg.Providers.SubDL.APIKey == "" {
			log.Warn().Msg("SubDL enabled without an API key, skipping provider")
		} else {
			r.register(NewSubDL(cfg.Providers.SubDL.APIKey, cfg.MinSubtitleSizeBytes, cfg.EnableSeasonPacks, client))
		}
	}
	if cfg.Providers.SubSource.Enabled {
		if cfg.Providers.SubSource.APIKey == "" {
			log.Warn().Msg("SubSource enabled without an API key, skipping provider")
		} else {
			r.register(NewSubSource(cfg.Providers.SubSource.APIKey, cfg.MinSubtitleSizeBytes, client))
		}
	}

	return r
}

func (r *Registry) register(p Provider) {
	if r.byTag == nil {
		r.byTag = make(map[string]Provider)
	}
	r.providers = append(r.providers, p)
	r.byTag[p.Tag()] = p
}

// Register adds a provider; used by tests and optional aggregator variants.
func (r *Registry) Register(p Provider) {
	r.register(p)
}

// Providers returns the enabled providers in registration order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Download routes a full fileId ("<tag>-<id>") to the owning provider.
func (r *Registry) Download(ctx context.Context, fileID string) (string, error) {
	tag, rest, ok := strings.Cut(fileID, "-")
	if !ok {
		return "", fmt.Errorf("%w: malformed file id %q", ErrUnknownProvider, fileID)
	}
	p, found := r.byTag[tag]
	if !found {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, tag)
	}
	return p.Download(ctx, rest)
}

// FileID builds the routable id for a provider-local file id.
func FileID(tag, providerFileID string) string {
	return tag + "-" + providerFileID
}

// NewHTTPClient returns the shared pooled client used by all providers.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
