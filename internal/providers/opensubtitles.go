// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/subgloss/subgloss/internal/domain"
	"github.com/subgloss/subgloss/internal/models"
)

const (
	openSubtitlesTag     = "os"
	openSubtitlesBaseURL = "https://api.opensubtitles.com/api/v1"
)

// OpenSubtitles is the REST v1 adapter. An API key is required; a username and
// password are optional and only raise the daily download quota.
type OpenSubtitles struct {
	cfg     domain.OpenSubtitlesConfig
	minSize int
	client  *http.Client
	baseURL string

	tokenMu sync.Mutex
	token   string
	tokenAt time.Time
}

// NewOpenSubtitles builds the adapter.
func NewOpenSubtitles(cfg domain.OpenSubtitlesConfig, minSizeBytes int, client *http.Client) *OpenSubtitles {
	return &OpenSubtitles{
		cfg:     cfg,
		minSize: minSizeBytes,
		client:  client,
		baseURL: openSubtitlesBaseURL,
	}
}

// Tag implements Provider.
func (o *OpenSubtitles) Tag() string { return openSubtitlesTag }

type osSearchResponse struct {
	Data []struct {
		Attributes struct {
			Language          string  `json:"language"`
			Release           string  `json:"release"`
			DownloadCount     int     `json:"download_count"`
			Ratings           float64 `json:"ratings"`
			UploadDate        string  `json:"upload_date"`
			HearingImpaired   bool    `json:"hearing_impaired"`
			ForeignPartsOnly  bool    `json:"foreign_parts_only"`
			MachineTranslated bool    `json:"machine_translated"`
			FeatureDetails    struct {
				SeasonNumber  int `json:"season_number"`
				EpisodeNumber int `json:"episode_number"`
			} `json:"feature_details"`
			Files []struct {
				FileID   int    `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

// Search implements Provider.
func (o *OpenSubtitles) Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error) {
	query := url.Values{}
	query.Set("imdb_id", strings.TrimPrefix(params.ImdbID, "tt"))
	query.Set("languages", osLanguagesParam(params.Languages))
	query.Set("order_by", "download_count")
	query.Set("order_direction", "desc")
	if params.IsEpisode() {
		query.Set("season_number", strconv.Itoa(params.Season))
		query.Set("episode_number", strconv.Itoa(params.Episode))
	}

	endpoint := o.baseURL + "/subtitles?" + query.Encode()

	var parsed osSearchResponse
	err := fetchJSON(ctx, o.client, SearchAttempts, &parsed, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Api-Key", o.cfg.APIKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("opensubtitles search: %w", err)
	}

	candidates := make([]models.SubtitleCandidate, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		a := item.Attributes
		if len(a.Files) == 0 {
			continue
		}
		// The API sometimes returns neighbouring episodes; keep only exact
		// matches for episode searches.
		if params.IsEpisode() && a.FeatureDetails.EpisodeNumber != 0 && a.FeatureDetails.EpisodeNumber != params.Episode {
			continue
		}

		releaseName := a.Release
		if releaseName == "" {
			releaseName = a.Files[0].FileName
		}

		uploadDate, _ := time.Parse(time.RFC3339, a.UploadDate)
		providerID := strconv.Itoa(a.Files[0].FileID)

		candidates = append(candidates, models.SubtitleCandidate{
			FileID:            FileID(openSubtitlesTag, providerID),
			Language:          a.Language,
			LanguageCode:      NormalizeLanguage(a.Language),
			ReleaseName:       releaseName,
			Downloads:         a.DownloadCount,
			Rating:            a.Ratings,
			UploadDate:        uploadDate,
			Provider:          "opensubtitles",
			ProviderFileID:    providerID,
			HearingImpaired:   a.HearingImpaired,
			ForeignPartsOnly:  a.ForeignPartsOnly,
			MachineTranslated: a.MachineTranslated,
		})
	}
	return candidates, nil
}

// Download implements Provider: resolve the download link, then fetch it.
func (o *OpenSubtitles) Download(ctx context.Context, providerFileID string) (string, error) {
	payload, err := json.Marshal(map[string]any{"file_id": mustAtoi(providerFileID)})
	if err != nil {
		return "", err
	}

	var linkResp struct {
		Link      string `json:"link"`
		Remaining int    `json:"remaining"`
	}
	err = fetchJSON(ctx, o.client, DownloadAttempts, &linkResp, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, o.baseURL+"/download", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Api-Key", o.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if token := o.loginToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("opensubtitles download link: %w", err)
	}
	if linkResp.Link == "" {
		return "", fmt.Errorf("%w: empty download link", ErrNotFound)
	}

	data, err := fetch(ctx, o.client, DownloadAttempts, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, linkResp.Link, nil)
	})
	if err != nil {
		return "", fmt.Errorf("opensubtitles download: %w", err)
	}

	return DecodePayload(ctx, data, o.minSize)
}

// loginToken logs in lazily when credentials are configured. Failures are
// logged and ignored: anonymous API-key downloads still work, just with a
// lower quota.
func (o *OpenSubtitles) loginToken(ctx context.Context) string {
	if o.cfg.Username == "" || o.cfg.Password == "" {
		return ""
	}

	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()

	if o.token != "" && time.Since(o.tokenAt) < 23*time.Hour {
		return o.token
	}

	payload, _ := json.Marshal(map[string]string{
		"username": o.cfg.Username,
		"password": o.cfg.Password,
	})

	var loginResp struct {
		Token string `json:"token"`
	}
	err := fetchJSON(ctx, o.client, 1, &loginResp, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, o.baseURL+"/login", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Api-Key", o.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("OpenSubtitles login failed, continuing anonymously")
		return ""
	}

	o.token = loginResp.Token
	o.tokenAt = time.Now()
	return o.token
}

// osLanguagesParam converts normalized 3-letter codes to the 2-letter forms
// the OpenSubtitles API expects, keeping pt-BR distinct.
func osLanguagesParam(codes []string) string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == BrazilianPortuguese {
			out = append(out, "pt-br")
			continue
		}
		if base, err := language.ParseBase(code); err == nil {
			out = append(out, base.String())
		}
	}
	return strings.Join(out, ",")
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
