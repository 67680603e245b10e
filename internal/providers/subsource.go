// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/subgloss/subgloss/internal/models"
)

const (
	subsourceTag     = "ss"
	subsourceBaseURL = "https://api.subsource.net/v1"
)

// SubSource is the subsource.net adapter.
type SubSource struct {
	apiKey  string
	minSize int
	client  *http.Client
	baseURL string
}

// NewSubSource builds the adapter.
func NewSubSource(apiKey string, minSizeBytes int, client *http.Client) *SubSource {
	return &SubSource{
		apiKey:  apiKey,
		minSize: minSizeBytes,
		client:  client,
		baseURL: subsourceBaseURL,
	}
}

// Tag implements Provider.
func (s *SubSource) Tag() string { return subsourceTag }

type subsourceResponse struct {
	Subtitles []struct {
		ID              int    `json:"id"`
		ReleaseName     string `json:"release_name"`
		Language        string `json:"language"`
		Downloads       int    `json:"downloads"`
		UploadDate      string `json:"upload_date"`
		HearingImpaired bool   `json:"hearing_impaired"`
		FullSeason      bool   `json:"full_season"`
	} `json:"subtitles"`
}

// Search implements Provider.
func (s *SubSource) Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	query := url.Values{}
	query.Set("imdb_id", params.ImdbID)
	query.Set("languages", osLanguagesParam(params.Languages))
	if params.IsEpisode() {
		query.Set("season", strconv.Itoa(params.Season))
		query.Set("episode", strconv.Itoa(params.Episode))
	}

	endpoint := s.baseURL + "/subtitles/search?" + query.Encode()

	var parsed subsourceResponse
	err := fetchJSON(ctx, s.client, SearchAttempts, &parsed, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", s.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("subsource search: %w", err)
	}

	candidates := make([]models.SubtitleCandidate, 0, len(parsed.Subtitles))
	for _, sub := range parsed.Subtitles {
		uploadDate, _ := time.Parse(time.RFC3339, sub.UploadDate)
		providerID := strconv.Itoa(sub.ID)

		candidates = append(candidates, models.SubtitleCandidate{
			FileID:          FileID(subsourceTag, providerID),
			Language:        sub.Language,
			LanguageCode:    NormalizeLanguage(sub.Language),
			ReleaseName:     sub.ReleaseName,
			Downloads:       sub.Downloads,
			UploadDate:      uploadDate,
			Provider:        "subsource",
			ProviderFileID:  providerID,
			HearingImpaired: sub.HearingImpaired,
			IsSeasonPack:    sub.FullSeason,
		})
	}
	return candidates, nil
}

// Download implements Provider.
func (s *SubSource) Download(ctx context.Context, providerFileID string) (string, error) {
	endpoint := s.baseURL + "/subtitles/download/" + url.PathEscape(providerFileID)

	data, err := fetch(ctx, s.client, DownloadAttempts, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", s.apiKey)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("subsource download: %w", err)
	}

	return DecodePayload(ctx, data, s.minSize)
}
