// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"sort"

	"github.com/subgloss/subgloss/internal/models"
)

// Per-language quotas. Listing keeps the subtitle picker short; the
// translation selector can afford to look deeper for a sync match.
const (
	ListingQuotaPerLanguage     = 12
	TranslationQuotaPerLanguage = 20
)

// Rank scores every candidate against the stream filename, sorts descending by
// score (stable, so provider order breaks ties), and enforces the per-language
// quota while preserving ranked order. The input slice is not modified.
func Rank(candidates []models.SubtitleCandidate, streamFilename string, quotaPerLanguage int) []models.SubtitleCandidate {
	ranked := make([]models.SubtitleCandidate, len(candidates))
	copy(ranked, candidates)

	if streamFilename != "" {
		for i := range ranked {
			ranked[i].MatchScore = Score(streamFilename, ranked[i].ReleaseName)
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].MatchScore > ranked[j].MatchScore
		})
	}

	if quotaPerLanguage <= 0 {
		return ranked
	}

	perLanguage := make(map[string]int)
	out := ranked[:0]
	for _, c := range ranked {
		if perLanguage[c.LanguageCode] >= quotaPerLanguage {
			continue
		}
		perLanguage[c.LanguageCode]++
		out = append(out, c)
	}
	return out
}
