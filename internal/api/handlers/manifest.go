// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subgloss/subgloss/internal/buildinfo"
)

// Manifest is the addon descriptor players fetch before anything else.
type Manifest struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Resources     []string       `json:"resources"`
	Types         []string       `json:"types"`
	Catalogs      []any          `json:"catalogs"`
	IDPrefixes    []string       `json:"idPrefixes"`
	BehaviorHints map[string]any `json:"behaviorHints"`
}

// ManifestHandler serves the addon manifest, with or without a user config
// path segment.
type ManifestHandler struct{}

func NewManifestHandler() *ManifestHandler {
	return &ManifestHandler{}
}

func (h *ManifestHandler) Routes(r chi.Router) {
	r.Get("/manifest.json", h.HandleManifest)
	r.Get("/configure", h.HandleConfigure)
}

func (h *ManifestHandler) HandleManifest(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, Manifest{
		ID:          "com.subgloss.subtitles",
		Version:     buildinfo.Version,
		Name:        "Subgloss",
		Description: "Subtitle search with on-the-fly AI translation",
		Resources:   []string{"subtitles"},
		Types:       []string{"movie", "series"},
		Catalogs:    []any{},
		IDPrefixes:  []string{"tt"},
		BehaviorHints: map[string]any{
			"configurable":          true,
			"configurationRequired": false,
		},
	})
}

// HandleConfigure serves a static page describing the per-user configuration
// blob. There is no setup wizard; players carry the blob as a path segment.
func (h *ManifestHandler) HandleConfigure(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html>
<html>
<head><title>Subgloss</title></head>
<body>
<h1>Subgloss</h1>
<p>Install with the default configuration via <code>/manifest.json</code>,
or prefix the addon URL with a base64url-encoded JSON config segment:</p>
<pre>{"sourceLanguages":["eng"],"targetLanguages":["hun"],"bypassCache":false}</pre>
<p>The encoded blob goes before the path, e.g.
<code>/&lt;config&gt;/manifest.json</code>.</p>
</body>
</html>
`))
}
