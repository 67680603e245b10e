// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SubtitleCandidate is a subtitle discovered by a provider search. It has not
// been downloaded; FileID carries everything needed to fetch it later.
type SubtitleCandidate struct {
	// FileID is opaque and provider-prefixed (e.g. "os-123456") so downloads
	// can be routed back to the owning provider.
	FileID string `json:"fileId"`

	Language     string `json:"language"`
	LanguageCode string `json:"languageCode"`

	ReleaseName string    `json:"releaseName,omitempty"`
	Downloads   int       `json:"downloads,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	UploadDate  time.Time `json:"uploadDate,omitzero"`

	Provider       string `json:"provider"`
	ProviderFileID string `json:"-"`

	HearingImpaired   bool `json:"hearingImpaired,omitempty"`
	ForeignPartsOnly  bool `json:"foreignPartsOnly,omitempty"`
	MachineTranslated bool `json:"machineTranslated,omitempty"`

	IsSeasonPack bool `json:"isSeasonPack,omitempty"`
	EpisodeFrom  int  `json:"episodeFrom,omitempty"`
	EpisodeTo    int  `json:"episodeTo,omitempty"`

	// MatchScore is computed against the player's release filename during
	// ranking; it is transient and never persisted.
	MatchScore int `json:"-"`
}

// CoversEpisode reports whether a season pack claims the given episode.
// A pack without a declared range is assumed to cover the whole season.
func (c *SubtitleCandidate) CoversEpisode(episode int) bool {
	if !c.IsSeasonPack {
		return false
	}
	if c.EpisodeFrom == 0 && c.EpisodeTo == 0 {
		return true
	}
	return episode >= c.EpisodeFrom && episode <= c.EpisodeTo
}

// SearchParams identifies one subtitle search.
type SearchParams struct {
	ImdbID         string
	Type           string // "movie" or "series"
	Season         int
	Episode        int
	Languages      []string
	StreamFilename string
}

// Key returns the canonical cache key for these parameters. Languages are
// sorted so permutations of the same set collide.
func (p SearchParams) Key() string {
	langs := make([]string, len(p.Languages))
	copy(langs, p.Languages)
	sort.Strings(langs)
	return fmt.Sprintf("%s|%s|%d|%d|%s", p.ImdbID, p.Type, p.Season, p.Episode, strings.Join(langs, ","))
}

// IsEpisode reports whether the search targets a single episode.
func (p SearchParams) IsEpisode() bool {
	return p.Type == "series" && p.Episode > 0
}
