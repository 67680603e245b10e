// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// BrazilianPortuguese is kept distinct from European Portuguese ("por") the
// way subtitle providers do.
const BrazilianPortuguese = "pob"

// brazilianAliases are the spellings providers use for Brazilian Portuguese.
var brazilianAliases = map[string]struct{}{
	"pob":                  {},
	"pb":                   {},
	"pt-br":                {},
	"ptbr":                 {},
	"br_pt":                {},
	"br-pt":                {},
	"br":                   {},
	"brazil":               {},
	"brazilian":            {},
	"brazillian":           {},
	"brazilian portuguese": {},
	"portuguese (br)":      {},
	"portuguese-br":        {},
}

// languageNames maps the plain-English names providers return to base tags.
// Codes themselves go through x/text parsing instead.
var languageNames = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"dutch":      "nl",
	"polish":     "pl",
	"turkish":    "tr",
	"vietnamese": "vi",
	"thai":       "th",
	"indonesian": "id",
	"malay":      "ms",
	"hungarian":  "hu",
	"czech":      "cs",
	"slovak":     "sk",
	"romanian":   "ro",
	"bulgarian":  "bg",
	"greek":      "el",
	"hebrew":     "he",
	"hindi":      "hi",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"croatian":   "hr",
	"serbian":    "sr",
	"slovenian":  "sl",
	"ukrainian":  "uk",
	"farsi":      "fa",
	"persian":    "fa",
}

// NormalizeLanguage converts whatever language string a provider returns into
// a 3-letter ISO-639-2 code, or "" when the language cannot be recognized.
// Candidates with unrecognized languages are dropped by the aggregator.
func NormalizeLanguage(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return ""
	}

	if _, ok := brazilianAliases[normalized]; ok {
		return BrazilianPortuguese
	}

	if mapped, ok := languageNames[normalized]; ok {
		normalized = mapped
	}

	tag, err := language.Parse(normalized)
	if err != nil {
		return ""
	}

	base, _ := tag.Base()
	if region, confidence := tag.Region(); confidence > language.No && base.String() == "pt" && region.String() == "BR" {
		return BrazilianPortuguese
	}

	iso3 := base.ISO3()
	if len(iso3) != 3 {
		return ""
	}
	return iso3
}

// LanguageDisplayName returns the English name for a normalized code, for the
// "Make <LanguageName>" pseudo-entries.
func LanguageDisplayName(code string) string {
	if code == BrazilianPortuguese {
		return "Brazilian Portuguese"
	}

	base, err := language.ParseBase(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	name := display.English.Languages().Name(language.Make(base.String()))
	if name == "" {
		return strings.ToUpper(code)
	}
	return name
}
