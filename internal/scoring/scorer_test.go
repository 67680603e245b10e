// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/subgloss/subgloss/internal/models"
)

func TestScoreExactMatch(t *testing.T) {
	t.Parallel()

	got := Score("Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv", "Show.S02E05.1080p.WEB-DL.x265-RARBG.srt")
	assert.Equal(t, ExactMatchScore, got)
}

func TestScoreDifferentWork(t *testing.T) {
	t.Parallel()

	got := Score("Alpha (2018) 1080p", "Omega (2019) 1080p")
	assert.Equal(t, 0, got)
}

func TestScoreEmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Score("", "Something.mkv"))
	assert.Equal(t, 0, Score("Something.mkv", ""))
}

func TestScoreIsPure(t *testing.T) {
	t.Parallel()

	const stream = "Show.S01E01.1080p.AMZN.WEB-DL.DDP5.1.x264-NTb.mkv"
	const candidate = "Show.S01E01.1080p.WEBRip.x264-GROUP.srt"

	first := Score(stream, candidate)
	for range 10 {
		assert.Equal(t, first, Score(stream, candidate))
	}
}

func TestScoreOrdering(t *testing.T) {
	t.Parallel()

	const stream = "Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv"

	// Closer facet matches must strictly outrank weaker ones.
	same := Score(stream, "Show.S02E05.1080p.WEB-DL.x265-RARBG")
	sameNoGroup := Score(stream, "Show.S02E05.1080p.WEB-DL.x265-FLUX")
	adjacentRip := Score(stream, "Show.S02E05.1080p.WEBRip.x265-FLUX")
	farRip := Score(stream, "Show.S02E05.1080p.CAM.x265-FLUX")

	assert.Greater(t, same, sameNoGroup)
	assert.Greater(t, sameNoGroup, adjacentRip)
	assert.Greater(t, adjacentRip, farRip)
}

func TestScorePopularGroupBeatsUnknownGroup(t *testing.T) {
	t.Parallel()

	const stream = "Movie.2020.1080p.WEB-DL.x264-RARBG.mkv"

	popular := Score(stream, "Movie.2020.1080p.WEB-DL.x264-RARBG")
	unknown := Score(stream, "Movie.2020.1080p.WEB-DL.x264-NOBODY")

	assert.Greater(t, popular, unknown)
}

func TestScoreEditionMismatchPenalized(t *testing.T) {
	t.Parallel()

	const stream = "Movie.2020.Extended.1080p.BluRay.x264-SPARKS.mkv"

	sameEdition := Score(stream, "Movie.2020.Extended.1080p.BluRay.x264-SPARKS")
	otherEdition := Score(stream, "Movie.2020.Theatrical.1080p.BluRay.x264-SPARKS")

	assert.Greater(t, sameEdition, otherEdition)
}

func TestScoreNeverNegative(t *testing.T) {
	t.Parallel()

	// Worst case facets: wrong group, far rip tier, wrong platform,
	// lower resolution, proper mismatch.
	got := Score(
		"Movie.2020.PROPER.2160p.AMZN.WEB-DL.x265.HDR10-RARBG.mkv",
		"Movie.2020.480p.NF.CAM.x264-JUNK",
	)
	assert.GreaterOrEqual(t, got, 0)
}

func TestRankOrderAndQuota(t *testing.T) {
	t.Parallel()

	const stream = "Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv"

	var candidates []models.SubtitleCandidate
	// 15 english candidates of varying quality plus 2 hungarian.
	for i := range 15 {
		name := fmt.Sprintf("Show.S02E05.1080p.WEBRip.x264-GRP%d", i)
		if i == 0 {
			name = "Show.S02E05.1080p.WEB-DL.x265-RARBG"
		}
		candidates = append(candidates, models.SubtitleCandidate{
			FileID:       fmt.Sprintf("os-%d", i),
			LanguageCode: "eng",
			ReleaseName:  name,
		})
	}
	candidates = append(candidates,
		models.SubtitleCandidate{FileID: "os-h1", LanguageCode: "hun", ReleaseName: "Show.S02E05.720p.HDTV.x264"},
		models.SubtitleCandidate{FileID: "os-h2", LanguageCode: "hun", ReleaseName: "Show.S02E05.1080p.WEB-DL.x265-RARBG"},
	)

	ranked := Rank(candidates, stream, ListingQuotaPerLanguage)

	perLang := map[string]int{}
	for _, c := range ranked {
		perLang[c.LanguageCode]++
	}
	assert.Equal(t, ListingQuotaPerLanguage, perLang["eng"])
	assert.Equal(t, 2, perLang["hun"])

	// Best candidate first within its language.
	assert.Equal(t, "os-0", ranked[0].FileID)

	// Descending scores overall.
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].MatchScore, ranked[i].MatchScore)
	}
}

func TestRankStableForTies(t *testing.T) {
	t.Parallel()

	candidates := []models.SubtitleCandidate{
		{FileID: "a", LanguageCode: "eng", ReleaseName: "Show.S01E01.1080p.WEB-DL.x264-GRP"},
		{FileID: "b", LanguageCode: "eng", ReleaseName: "Show.S01E01.1080p.WEB-DL.x264-GRP"},
		{FileID: "c", LanguageCode: "eng", ReleaseName: "Show.S01E01.1080p.WEB-DL.x264-GRP"},
	}

	ranked := Rank(candidates, "Show.S01E01.1080p.WEB-DL.x264-GRP.mkv", 0)

	assert.Equal(t, "a", ranked[0].FileID)
	assert.Equal(t, "b", ranked[1].FileID)
	assert.Equal(t, "c", ranked[2].FileID)
}

func TestRankWithoutStreamFilename(t *testing.T) {
	t.Parallel()

	candidates := []models.SubtitleCandidate{
		{FileID: "a", LanguageCode: "eng"},
		{FileID: "b", LanguageCode: "eng"},
	}

	ranked := Rank(candidates, "", 1)
	assert.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].FileID)
}
