// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgloss/subgloss/internal/domain"
	"github.com/subgloss/subgloss/internal/models"
)

type fakeProvider struct {
	tag        string
	candidates []models.SubtitleCandidate
	content    string
	searchErr  error
	downloads  atomic.Int32
}

func (f *fakeProvider) Tag() string { return f.tag }

func (f *fakeProvider) Search(_ context.Context, _ models.SearchParams) ([]models.SubtitleCandidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeProvider) Download(_ context.Context, providerFileID string) (string, error) {
	f.downloads.Add(1)
	if f.content == "" {
		return "", ErrNotFound
	}
	return f.content + ":" + providerFileID, nil
}

func TestRegistryRoutesDownloads(t *testing.T) {
	t.Parallel()

	r := &Registry{byTag: map[string]Provider{}}
	r.Register(&fakeProvider{tag: "os", content: "os-content"})
	r.Register(&fakeProvider{tag: "subdl", content: "subdl-content"})

	out, err := r.Download(t.Context(), "os-12345")
	require.NoError(t, err)
	assert.Equal(t, "os-content:12345", out)

	// SubDL provider ids contain slashes and dashes of their own.
	out, err = r.Download(t.Context(), "subdl-subtitle/123-456.zip")
	require.NoError(t, err)
	assert.Equal(t, "subdl-content:subtitle/123-456.zip", out)

	_, err = r.Download(t.Context(), "nosuch-1")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = r.Download(t.Context(), "malformed")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewRegistrySkipsProvidersWithoutCredentials(t *testing.T) {
	t.Parallel()

	cfg := &domain.Config{
		Providers: domain.ProvidersConfig{
			OpenSubtitles: domain.OpenSubtitlesConfig{Enabled: true}, // no key
			SubDL:         domain.APIKeyProvider{Enabled: true, APIKey: "k"},
			SubSource:     domain.APIKeyProvider{Enabled: false, APIKey: "k"},
		},
	}

	r := NewRegistry(cfg, NewHTTPClient())
	require.Len(t, r.Providers(), 1)
	assert.Equal(t, subdlTag, r.Providers()[0].Tag())
}

func TestOpenSubtitlesSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		assert.Equal(t, "123", r.URL.Query().Get("imdb_id"))
		assert.Equal(t, "2", r.URL.Query().Get("season_number"))
		assert.Equal(t, "5", r.URL.Query().Get("episode_number"))

		resp := map[string]any{
			"data": []map[string]any{
				{
					"attributes": map[string]any{
						"language":        "en",
						"release":        "Show.S02E05.1080p.WEB-DL.x265-RARBG",
						"download_count":  100,
						"feature_details": map[string]any{"season_number": 2, "episode_number": 5},
						"files":           []map[string]any{{"file_id": 42, "file_name": "show.srt"}},
					},
				},
				{
					// Wrong episode; must be filtered out.
					"attributes": map[string]any{
						"language":        "en",
						"release":        "Show.S02E06.1080p.WEB-DL.x265-RARBG",
						"feature_details": map[string]any{"season_number": 2, "episode_number": 6},
						"files":           []map[string]any{{"file_id": 43}},
					},
				},
				{
					// No files; must be skipped.
					"attributes": map[string]any{
						"language": "en",
						"files":    []map[string]any{},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOpenSubtitles(domain.OpenSubtitlesConfig{APIKey: "test-key"}, 200, srv.Client())
	p.baseURL = srv.URL

	got, err := p.Search(t.Context(), models.SearchParams{
		ImdbID:    "tt123",
		Type:      "series",
		Season:    2,
		Episode:   5,
		Languages: []string{"eng"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "os-42", got[0].FileID)
	assert.Equal(t, "eng", got[0].LanguageCode)
	assert.Equal(t, "Show.S02E05.1080p.WEB-DL.x265-RARBG", got[0].ReleaseName)
	assert.Equal(t, 100, got[0].Downloads)
	assert.Equal(t, "opensubtitles", got[0].Provider)
}

func TestOpenSubtitlesDownload(t *testing.T) {
	t.Parallel()

	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testSRT))
	}))
	defer fileServer.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/download", r.URL.Path)
		var req struct {
			FileID int `json:"file_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42, req.FileID)
		_ = json.NewEncoder(w).Encode(map[string]any{"link": fileServer.URL + "/file.srt"})
	}))
	defer api.Close()

	p := NewOpenSubtitles(domain.OpenSubtitlesConfig{APIKey: "test-key"}, 50, api.Client())
	p.baseURL = api.URL

	out, err := p.Download(t.Context(), "42")
	require.NoError(t, err)
	assert.Equal(t, testSRT, out)
}

func TestSubDLSearchSeasonPackGating(t *testing.T) {
	t.Parallel()

	respond := func(w http.ResponseWriter) {
		resp := map[string]any{
			"status": true,
			"subtitles": []map[string]any{
				{
					"release_name": "Show.S01E01.1080p.WEB-DL",
					"lang":         "EN",
					"url":          "/subtitle/111.zip",
					"season":       1,
					"episode":      1,
				},
				{
					"release_name": "Show.S01.COMPLETE.1080p",
					"lang":         "EN",
					"url":          "/subtitle/222.zip",
					"season":       1,
					"full_season":  true,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		respond(w)
	}))
	defer srv.Close()

	params := models.SearchParams{ImdbID: "tt123", Type: "series", Season: 1, Episode: 1, Languages: []string{"eng"}}

	withPacks := NewSubDL("k", 200, true, srv.Client())
	withPacks.apiURL = srv.URL
	got, err := withPacks.Search(t.Context(), params)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsSeasonPack)
	assert.True(t, got[1].IsSeasonPack)
	assert.Equal(t, "subdl-subtitle/222.zip", got[1].FileID)

	withoutPacks := NewSubDL("k", 200, false, srv.Client())
	withoutPacks.apiURL = srv.URL
	got, err = withoutPacks.Search(t.Context(), params)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsSeasonPack)
}

func TestSubDLDownloadExtractsZip(t *testing.T) {
	t.Parallel()

	archive := zipWith(t, map[string]string{"movie.srt": testSRT})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subtitle/111.zip", r.URL.Path)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	p := NewSubDL("k", 50, true, srv.Client())
	p.downloadURL = srv.URL

	out, err := p.Download(t.Context(), "subtitle/111.zip")
	require.NoError(t, err)
	assert.Equal(t, testSRT, out)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := fetch(t.Context(), srv.Client(), 3, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetch(t.Context(), srv.Client(), 3, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchStopsBackoffWhenContextExpires(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := fetch(ctx, srv.Client(), 5, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.Error(t, err)

	// The first backoff delay alone is 500ms; the deadline must cut the
	// retry loop short instead of sleeping through it.
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
