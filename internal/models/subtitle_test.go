// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoversEpisode(t *testing.T) {
	t.Parallel()

	single := SubtitleCandidate{}
	assert.False(t, single.CoversEpisode(3))

	wholeSeason := SubtitleCandidate{IsSeasonPack: true}
	assert.True(t, wholeSeason.CoversEpisode(1))
	assert.True(t, wholeSeason.CoversEpisode(24))

	ranged := SubtitleCandidate{IsSeasonPack: true, EpisodeFrom: 5, EpisodeTo: 8}
	assert.False(t, ranged.CoversEpisode(4))
	assert.True(t, ranged.CoversEpisode(5))
	assert.True(t, ranged.CoversEpisode(8))
	assert.False(t, ranged.CoversEpisode(9))
}

func TestSearchParamsKeyIsOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := SearchParams{ImdbID: "tt1", Type: "series", Season: 2, Episode: 3, Languages: []string{"eng", "hun"}}
	b := SearchParams{ImdbID: "tt1", Type: "series", Season: 2, Episode: 3, Languages: []string{"hun", "eng"}}

	assert.Equal(t, a.Key(), b.Key())

	c := a
	c.Episode = 4
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestIsEpisode(t *testing.T) {
	t.Parallel()

	assert.True(t, SearchParams{Type: "series", Episode: 1}.IsEpisode())
	assert.False(t, SearchParams{Type: "series"}.IsEpisode())
	assert.False(t, SearchParams{Type: "movie", Episode: 1}.IsEpisode())
}
