// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFacets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Facets
	}{
		{
			name: "episode web-dl",
			in:   "Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv",
			want: Facets{
				Resolution:     "1080p",
				RipType:        "web-dl",
				RipTier:        1,
				Codec:          "HEVC",
				Group:          "rarbg",
				IsPopularGroup: true,
				Season:         2,
				Episode:        5,
				TitleBase:      "show",
			},
		},
		{
			name: "movie bluray remux with platform absent",
			in:   "Some.Movie.2019.2160p.BluRay.REMUX.HDR10.TrueHD-GROUP",
			want: Facets{
				Resolution: "4k",
				RipType:    "bdremux",
				RipTier:    4,
				HDR:        "HDR10",
				Audio:      "TRUEHD",
				Group:      "group",
				Year:       2019,
				TitleBase:  "some movie",
			},
		},
		{
			name: "amazon webrip",
			in:   "Another.Show.S01E01.720p.AMZN.WEBRip.DDP5.1.x264-NTb",
			want: Facets{
				Resolution:     "720p",
				RipType:        "webrip",
				RipTier:        2,
				Codec:          "AVC",
				Platform:       "AMZN",
				Group:          "ntb",
				IsPopularGroup: true,
				Season:         1,
				Episode:        1,
				TitleBase:      "another show",
			},
		},
		{
			name: "empty",
			in:   "",
			want: Facets{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Parse(tt.in)

			assert.Equal(t, tt.want.Resolution, got.Resolution, "resolution")
			assert.Equal(t, tt.want.RipType, got.RipType, "rip type")
			assert.Equal(t, tt.want.RipTier, got.RipTier, "rip tier")
			if tt.want.Codec != "" {
				assert.Equal(t, tt.want.Codec, got.Codec, "codec")
			}
			if tt.want.Audio != "" {
				assert.Contains(t, got.Audio, tt.want.Audio, "audio")
			}
			assert.Equal(t, tt.want.HDR, got.HDR, "hdr")
			assert.Equal(t, tt.want.Platform, got.Platform, "platform")
			assert.Equal(t, tt.want.Group, got.Group, "group")
			assert.Equal(t, tt.want.IsPopularGroup, got.IsPopularGroup, "popular group")
			assert.Equal(t, tt.want.Season, got.Season, "season")
			assert.Equal(t, tt.want.Episode, got.Episode, "episode")
			if tt.want.TitleBase != "" {
				assert.Equal(t, tt.want.TitleBase, got.TitleBase, "title base")
			}
		})
	}
}

func TestParseEditionAndProper(t *testing.T) {
	t.Parallel()

	f := Parse("Old.Film.1999.Extended.1080p.BluRay.PROPER.x264-SPARKS")
	assert.Equal(t, "extended", f.Edition)
	assert.True(t, f.Proper)
	assert.True(t, f.IsPopularGroup)

	f = Parse("Old.Film.1999.1080p.BluRay.x264-SPARKS")
	assert.Empty(t, f.Edition)
	assert.False(t, f.Proper)
}

func TestParseSpecificBeforeGeneric(t *testing.T) {
	t.Parallel()

	// "web-dl" must never fall through to plain "web"
	assert.Equal(t, "web-dl", Parse("Title.2020.1080p.WEB-DL.x264").RipType)
	assert.Equal(t, "webrip", Parse("Title.2020.1080p.WEBRip.x264").RipType)

	// hdr10+ before hdr10 before hdr
	assert.Equal(t, "HDR10+", Parse("Title.2020.2160p.WEB-DL.HDR10+.x265").HDR)
	assert.Equal(t, "HDR10", Parse("Title.2020.2160p.WEB-DL.HDR10.x265").HDR)
}

func TestParseIsPure(t *testing.T) {
	t.Parallel()

	const in = "Show.S02E05.1080p.WEB-DL.x265-RARBG.mkv"
	first := Parse(in)
	second := Parse(in)
	assert.Equal(t, first, second)
}

func TestGroupExtractionFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bracketed", "[SubsPlease] Title - 05 (1080p)", "subsplease"},
		{"trailing dash", "Title.2020.1080p.WEB-DL-FLUX.mkv", "flux"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.in).Group)
		})
	}
}

func TestNormalizeVideoCodec(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AVC", NormalizeVideoCodec("x264"))
	assert.Equal(t, "AVC", NormalizeVideoCodec("H.264"))
	assert.Equal(t, "HEVC", NormalizeVideoCodec("x265"))
	assert.Equal(t, "AV1", NormalizeVideoCodec("av1"))
	assert.Equal(t, "UNKNOWNCODEC", NormalizeVideoCodec("unknowncodec"))
}

func TestCompatibleCodecs(t *testing.T) {
	t.Parallel()

	assert.True(t, CompatibleCodecs("AVC", "HEVC"))
	assert.True(t, CompatibleCodecs("HEVC", "AVC"))
	assert.False(t, CompatibleCodecs("AVC", "AVC"))
	assert.False(t, CompatibleCodecs("AV1", "HEVC"))
}
