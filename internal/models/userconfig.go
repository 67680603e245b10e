// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AnonymousUser is the user hash applied when a request carries no identity.
const AnonymousUser = "anonymous"

// UserConfig is the per-request configuration blob the player embeds in the
// addon URL. Zero values fall back to server defaults.
type UserConfig struct {
	SourceLanguages []string `json:"sourceLanguages,omitempty"`
	TargetLanguages []string `json:"targetLanguages,omitempty"`

	BypassCache            bool `json:"bypassCache,omitempty"`
	EnableSeasonPacks      bool `json:"enableSeasonPacks,omitempty"`
	ExcludeHearingImpaired bool `json:"excludeHearingImpairedSubtitles,omitempty"`
	ShowSyncAction         bool `json:"showSyncAction,omitempty"`
	ShowTranslateSRTAction bool `json:"showTranslateSrtAction,omitempty"`

	// ConfigHash is the opaque per-user identity tag; it scopes bypass cache
	// entries so users never see each other's translations.
	ConfigHash string `json:"__configHash,omitempty"`
}

// UserHash returns the identity tag for cache scoping.
func (u *UserConfig) UserHash() string {
	if u == nil || u.ConfigHash == "" {
		return AnonymousUser
	}
	return u.ConfigHash
}

// DecodeUserConfig parses a base64url-encoded JSON blob from the addon URL.
// An empty segment yields an empty config rather than an error.
func DecodeUserConfig(segment string) (*UserConfig, error) {
	cfg := &UserConfig{}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return cfg, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(segment); err != nil {
			return nil, fmt.Errorf("decode user config: %w", err)
		}
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse user config: %w", err)
	}
	return cfg, nil
}

// Encode serializes the config the same way clients do, for tests and URLs.
func (u *UserConfig) Encode() (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
