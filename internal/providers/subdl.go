// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/subgloss/subgloss/internal/models"
)

const (
	subdlTag         = "subdl"
	subdlAPIURL      = "https://api.subdl.com/api/v1/subtitles"
	subdlDownloadURL = "https://dl.subdl.com"
)

// SubDL is the subdl.com adapter. Downloads are ZIP archives addressed by the
// url path the search response returns, so that path doubles as the
// provider-local file id.
type SubDL struct {
	apiKey      string
	minSize     int
	seasonPacks bool
	client      *http.Client
	apiURL      string
	downloadURL string
}

// NewSubDL builds the adapter.
func NewSubDL(apiKey string, minSizeBytes int, seasonPacks bool, client *http.Client) *SubDL {
	return &SubDL{
		apiKey:      apiKey,
		minSize:     minSizeBytes,
		seasonPacks: seasonPacks,
		client:      client,
		apiURL:      subdlAPIURL,
		downloadURL: subdlDownloadURL,
	}
}

// Tag implements Provider.
func (s *SubDL) Tag() string { return subdlTag }

type subdlResponse struct {
	Status    bool `json:"status"`
	Subtitles []struct {
		ReleaseName string `json:"release_name"`
		Name        string `json:"name"`
		Lang        string `json:"lang"`
		Language    string `json:"language"`
		URL         string `json:"url"`
		Season      int    `json:"season"`
		Episode     int    `json:"episode"`
		EpisodeFrom int    `json:"episode_from"`
		EpisodeEnd  int    `json:"episode_end"`
		FullSeason  bool   `json:"full_season"`
		HI          bool   `json:"hi"`
	} `json:"subtitles"`
}

// Search implements Provider.
func (s *SubDL) Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	query := url.Values{}
	query.Set("api_key", s.apiKey)
	query.Set("imdb_id", params.ImdbID)
	query.Set("languages", subdlLanguagesParam(params.Languages))
	if params.IsEpisode() {
		query.Set("type", "tv")
		query.Set("season_number", strconv.Itoa(params.Season))
		query.Set("episode_number", strconv.Itoa(params.Episode))
	} else {
		query.Set("type", "movie")
	}

	endpoint := s.apiURL + "?" + query.Encode()

	var parsed subdlResponse
	err := fetchJSON(ctx, s.client, SearchAttempts, &parsed, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("subdl search: %w", err)
	}

	candidates := make([]models.SubtitleCandidate, 0, len(parsed.Subtitles))
	for _, sub := range parsed.Subtitles {
		if sub.URL == "" {
			continue
		}

		isPack := sub.FullSeason || (sub.Season > 0 && sub.Episode == 0 && sub.EpisodeFrom == 0)
		if isPack && !s.seasonPacks {
			continue
		}
		// Episode searches still return stray neighbours now and then.
		if params.IsEpisode() && !isPack && sub.Episode != 0 && sub.Episode != params.Episode {
			continue
		}

		releaseName := sub.ReleaseName
		if releaseName == "" {
			releaseName = sub.Name
		}

		lang := sub.Lang
		if lang == "" {
			lang = sub.Language
		}

		providerID := strings.TrimPrefix(sub.URL, "/")
		candidates = append(candidates, models.SubtitleCandidate{
			FileID:          FileID(subdlTag, providerID),
			Language:        lang,
			LanguageCode:    NormalizeLanguage(lang),
			ReleaseName:     releaseName,
			Provider:        "subdl",
			ProviderFileID:  providerID,
			HearingImpaired: sub.HI,
			IsSeasonPack:    isPack,
			EpisodeFrom:     sub.EpisodeFrom,
			EpisodeTo:       sub.EpisodeEnd,
		})
	}
	return candidates, nil
}

// Download implements Provider. The payload is almost always a ZIP archive.
func (s *SubDL) Download(ctx context.Context, providerFileID string) (string, error) {
	endpoint := s.downloadURL + "/" + strings.TrimPrefix(providerFileID, "/")

	data, err := fetch(ctx, s.client, DownloadAttempts, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", fmt.Errorf("subdl download: %w", err)
	}

	return DecodePayload(ctx, data, s.minSize)
}

// subdlLanguagesParam maps normalized codes to the uppercase 2-letter codes
// subdl expects, with BR_PT for Brazilian Portuguese.
func subdlLanguagesParam(codes []string) string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == BrazilianPortuguese {
			out = append(out, "BR_PT")
			continue
		}
		if base, err := language.ParseBase(code); err == nil {
			out = append(out, strings.ToUpper(base.String()))
		}
	}
	return strings.Join(out, ",")
}
