// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/subgloss/subgloss/internal/domain"
	"github.com/subgloss/subgloss/internal/models"
	"github.com/subgloss/subgloss/internal/providers"
	"github.com/subgloss/subgloss/internal/scoring"
	"github.com/subgloss/subgloss/internal/subtitle"
)

// Searcher aggregates subtitle candidates; the search aggregator implements
// it.
type Searcher interface {
	Search(ctx context.Context, params models.SearchParams) ([]models.SubtitleCandidate, error)
}

// Downloader fetches subtitle content by routable file id.
type Downloader interface {
	Download(ctx context.Context, fileID string) (string, error)
}

// Translator serves translated subtitles; the orchestrator implements it.
type Translator interface {
	HandleTranslation(ctx context.Context, sourceFileID, targetLanguage string, user *models.UserConfig) string
}

// SubtitleEntry is one row in the addon listing.
type SubtitleEntry struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// SubtitleHandler is the addon facade: listing, download, and translation.
type SubtitleHandler struct {
	search     Searcher
	downloader Downloader
	translator Translator
	cfg        *domain.Config
}

func NewSubtitleHandler(search Searcher, downloader Downloader, translator Translator, cfg *domain.Config) *SubtitleHandler {
	return &SubtitleHandler{
		search:     search,
		downloader: downloader,
		translator: translator,
		cfg:        cfg,
	}
}

func (h *SubtitleHandler) Routes(r chi.Router) {
	// The trailing ".json" is stripped in the handler rather than matched in
	// the pattern: stream filenames in the extra segment contain dots, and a
	// "{extra}.json" pattern would cut the segment at the first one.
	r.Get("/subtitles/{type}/{id}", h.HandleList)
	r.Get("/subtitles/{type}/{id}/{extra}", h.HandleList)
	r.Get("/subtitle/{fileID}/{lang}", h.HandleDownload)
	r.Get("/translate/{sourceFileID}/{targetLang}", h.HandleTranslate)
}

// userConfig decodes the optional user-config path segment; absence or
// garbage yields defaults from server config.
func (h *SubtitleHandler) userConfig(r *http.Request) *models.UserConfig {
	segment := chi.URLParam(r, "userConfig")
	if segment == "" {
		return h.defaultUserConfig()
	}

	user, err := models.DecodeUserConfig(segment)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring malformed user config segment")
		return h.defaultUserConfig()
	}

	if len(user.SourceLanguages) == 0 {
		user.SourceLanguages = h.cfg.SourceLanguages
	}
	if len(user.TargetLanguages) == 0 {
		user.TargetLanguages = h.cfg.TargetLanguages
	}
	return user
}

func (h *SubtitleHandler) defaultUserConfig() *models.UserConfig {
	return &models.UserConfig{
		SourceLanguages:        h.cfg.SourceLanguages,
		TargetLanguages:        h.cfg.TargetLanguages,
		ExcludeHearingImpaired: h.cfg.ExcludeHearingImpairedSubtitles,
		EnableSeasonPacks:      h.cfg.EnableSeasonPacks,
	}
}

// HandleList searches all providers and renders the listing: real candidates
// first, then "Make <Language>" translation pseudo-entries, then action
// entries. Failures degrade to an empty list, never an error status.
func (h *SubtitleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := h.userConfig(r)

	params, ok := h.listParams(r, user)
	if !ok {
		RespondJSON(w, http.StatusOK, map[string]any{"subtitles": []SubtitleEntry{}})
		return
	}

	candidates, err := h.search.Search(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Str("imdbId", params.ImdbID).Msg("subtitle search failed")
		candidates = nil
	}

	base := h.baseURL(r)
	entries := h.listingEntries(candidates, params, base)
	entries = append(entries, h.translationEntries(candidates, params, user, base)...)
	entries = append(entries, h.actionEntries(user, base)...)

	RespondJSON(w, http.StatusOK, map[string]any{"subtitles": entries})
}

// listParams decodes the video id ("tt123" or "tt123:1:5"), type, and the
// optional extra segment (filename, videoSize, ...).
func (h *SubtitleHandler) listParams(r *http.Request, user *models.UserConfig) (models.SearchParams, bool) {
	mediaType := chi.URLParam(r, "type")
	if mediaType != "movie" && mediaType != "series" {
		return models.SearchParams{}, false
	}

	rawID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || rawID == "" {
		return models.SearchParams{}, false
	}
	rawID = strings.TrimSuffix(rawID, ".json")

	params := models.SearchParams{
		Type:      mediaType,
		Languages: languageUnion(user.SourceLanguages, user.TargetLanguages),
	}

	parts := strings.Split(rawID, ":")
	params.ImdbID = parts[0]
	if !strings.HasPrefix(params.ImdbID, "tt") {
		return models.SearchParams{}, false
	}
	if len(parts) >= 3 {
		params.Season, _ = strconv.Atoi(parts[1])
		params.Episode, _ = strconv.Atoi(parts[2])
	}

	if extra, err := url.PathUnescape(chi.URLParam(r, "extra")); err == nil && extra != "" {
		extra = strings.TrimSuffix(extra, ".json")
		if values, err := url.ParseQuery(extra); err == nil {
			params.StreamFilename = values.Get("filename")
			if params.StreamFilename == "" {
				params.StreamFilename = values.Get("videoFilename")
			}
		}
	}

	return params, true
}

// listingEntries renders ranked real candidates across all requested
// languages.
func (h *SubtitleHandler) listingEntries(candidates []models.SubtitleCandidate, params models.SearchParams, base string) []SubtitleEntry {
	ranked := scoring.Rank(candidates, params.StreamFilename, scoring.ListingQuotaPerLanguage)

	entries := make([]SubtitleEntry, 0, len(ranked))
	for _, c := range ranked {
		entries = append(entries, SubtitleEntry{
			ID:   c.FileID,
			Lang: c.LanguageCode,
			URL:  fmt.Sprintf("%s/subtitle/%s/%s.srt", base, url.PathEscape(c.FileID), c.LanguageCode),
		})
	}
	return entries
}

// translationEntries renders one "Make <Language>" pseudo-entry per ranked
// source-language candidate and target language.
func (h *SubtitleHandler) translationEntries(candidates []models.SubtitleCandidate, params models.SearchParams, user *models.UserConfig, base string) []SubtitleEntry {
	sourceSet := make(map[string]bool, len(user.SourceLanguages))
	for _, lang := range user.SourceLanguages {
		sourceSet[lang] = true
	}

	var sources []models.SubtitleCandidate
	for _, c := range candidates {
		if sourceSet[c.LanguageCode] {
			sources = append(sources, c)
		}
	}
	sources = scoring.Rank(sources, params.StreamFilename, scoring.TranslationQuotaPerLanguage)

	var entries []SubtitleEntry
	for _, targetLang := range user.TargetLanguages {
		if sourceSet[targetLang] {
			continue
		}
		label := "Make " + providers.LanguageDisplayName(targetLang)

		for _, c := range sources {
			entries = append(entries, SubtitleEntry{
				ID:   fmt.Sprintf("translate_%s_to_%s", c.FileID, targetLang),
				Lang: label,
				URL:  fmt.Sprintf("%s/translate/%s/%s", base, url.PathEscape(c.FileID), targetLang),
			})
		}
	}
	return entries
}

// actionEntries renders the optional tool entries at the bottom of the list.
func (h *SubtitleHandler) actionEntries(user *models.UserConfig, base string) []SubtitleEntry {
	var entries []SubtitleEntry
	if user.ShowSyncAction {
		entries = append(entries, SubtitleEntry{
			ID:   "action_sync",
			Lang: "Sync Subtitles",
			URL:  base + "/configure",
		})
	}
	if user.ShowTranslateSRTAction {
		entries = append(entries, SubtitleEntry{
			ID:   "action_translate_srt",
			Lang: "Translate SRT",
			URL:  base + "/configure",
		})
	}
	return entries
}

// HandleDownload routes a file id to its provider and returns the subtitle,
// or a sentinel SRT naming the failure. Translation pseudo-ids that land here
// are forwarded to the translator.
func (h *SubtitleHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	fileID, err := url.PathUnescape(chi.URLParam(r, "fileID"))
	if err != nil || fileID == "" {
		RespondSRT(w, subtitle.UnavailableSRT())
		return
	}

	if src, target, ok := parseTranslateID(fileID); ok {
		RespondSRT(w, h.translator.HandleTranslation(r.Context(), src, target, h.userConfig(r)))
		return
	}

	content, err := h.downloader.Download(r.Context(), fileID)
	if err != nil {
		log.Warn().Err(err).Str("fileId", fileID).Msg("subtitle download failed")
		RespondSRT(w, downloadErrorSRT(err))
		return
	}
	RespondSRT(w, content)
}

// HandleTranslate serves a translated subtitle: final, partial, loading, or a
// sentinel explaining why not.
func (h *SubtitleHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	sourceFileID, err := url.PathUnescape(chi.URLParam(r, "sourceFileID"))
	if err != nil || sourceFileID == "" {
		RespondSRT(w, subtitle.UnavailableSRT())
		return
	}

	targetLang := strings.TrimSuffix(chi.URLParam(r, "targetLang"), ".srt")
	if normalized := providers.NormalizeLanguage(targetLang); normalized != "" {
		targetLang = normalized
	}

	RespondSRT(w, h.translator.HandleTranslation(r.Context(), sourceFileID, targetLang, h.userConfig(r)))
}

// baseURL is the public address used in listing URLs.
func (h *SubtitleHandler) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return strings.TrimSuffix(h.cfg.BaseURL, "/")
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// parseTranslateID decodes "translate_<fileId>_to_<lang>" pseudo-ids.
func parseTranslateID(id string) (sourceFileID, targetLang string, ok bool) {
	rest, found := strings.CutPrefix(id, "translate_")
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, "_to_")
	if idx <= 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len("_to_"):], true
}

// downloadErrorSRT maps provider failures onto the sentinel vocabulary.
func downloadErrorSRT(err error) string {
	switch {
	case errors.Is(err, providers.ErrTooSmall):
		return subtitle.InvalidSourceSRT()
	case errors.Is(err, providers.ErrArchiveTooLarge):
		return subtitle.ArchiveTooLargeSRT()
	default:
		return subtitle.UnavailableSRT()
	}
}

// languageUnion merges source and target languages, preserving order and
// dropping duplicates.
func languageUnion(source, target []string) []string {
	seen := make(map[string]bool, len(source)+len(target))
	var out []string
	for _, lang := range append(append([]string{}, source...), target...) {
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}
