// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there.

2
00:00:04,000 --> 00:00:06,000
Second line
over two rows.

3
00:01:00,000 --> 00:01:02,000
Third.
`

func TestParse(t *testing.T) {
	t.Parallel()

	cues := Parse(sampleSRT)
	require.Len(t, cues, 3)

	assert.Equal(t, 1, cues[0].Index)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 3500*time.Millisecond, cues[0].End)
	assert.Equal(t, "Hello there.", cues[0].Text)
	assert.Equal(t, "Second line\nover two rows.", cues[1].Text)
}

func TestParseCRLFAndMissingIndices(t *testing.T) {
	t.Parallel()

	crlf := strings.ReplaceAll(sampleSRT, "\n", "\r\n")
	assert.Len(t, Parse(crlf), 3)

	noIdx := "00:00:01,000 --> 00:00:02,000\nText one\n\n00:00:03,000 --> 00:00:04,000\nText two\n"
	cues := Parse(noIdx)
	require.Len(t, cues, 2)
	assert.Equal(t, 1, cues[0].Index)
	assert.Equal(t, 2, cues[1].Index)
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	t.Parallel()

	mixed := "garbage block\nwithout timecode\n\n1\n00:00:01,000 --> 00:00:02,000\nGood\n\n2\n00:00:05,000 -->\nBroken\n"
	cues := Parse(mixed)
	require.Len(t, cues, 1)
	assert.Equal(t, "Good", cues[0].Text)
}

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()

	// parse . format . parse == parse
	once := Parse(sampleSRT)
	again := Parse(Format(once))
	assert.Equal(t, once, again)
}

func TestFormatTimecode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:00,000", FormatTimecode(0))
	assert.Equal(t, "01:02:03,450", FormatTimecode(time.Hour+2*time.Minute+3*time.Second+450*time.Millisecond))
	assert.Equal(t, "04:00:00,000", FormatTimecode(4*time.Hour))
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	cues := []Cue{
		{Index: 1, Start: 0, End: time.Second, Text: "Keep"},
		{Index: 2, Start: time.Second, End: 2 * time.Second, Text: "   "},
		{Index: 3, Start: 2 * time.Second, End: 3 * time.Second, Text: "00:00:02,000 --> 00:00:03,000 Inline"},
	}

	out := Sanitize(cues)
	require.Len(t, out, 2)
	assert.Equal(t, "Keep", out[0].Text)
	assert.Equal(t, 1, out[0].Index)
	assert.Equal(t, "Inline", out[1].Text)
	assert.Equal(t, 2, out[1].Index)
}

func TestIsVTTAndIsASS(t *testing.T) {
	t.Parallel()

	assert.True(t, IsVTT("WEBVTT\n\n00:00.000 --> 00:01.000\nHi"))
	assert.False(t, IsVTT(sampleSRT))

	ass := "[Script Info]\nTitle: x\n\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n"
	assert.True(t, IsASS(ass))
	assert.False(t, IsASS(sampleSRT))
}

func TestASSToSRT(t *testing.T) {
	t.Parallel()

	ass := `[Script Info]
Title: sample

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:03.00,Default,,0,0,0,,{\i1}Hello{\i0} world
Dialogue: 0,0:00:04.50,0:00:06.00,Default,,0,0,0,,Line one\NLine two
`

	out := ASSToSRT(ass)
	cues := Parse(out)
	require.Len(t, cues, 2)
	assert.Equal(t, "Hello world", cues[0].Text)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, "Line one\nLine two", cues[1].Text)
	assert.Equal(t, 4500*time.Millisecond, cues[1].Start)
}

func TestSentinelsAreParseable(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"loading":     LoadingSRT("Hungarian"),
		"limit":       ConcurrencyLimitSRT(),
		"invalid":     InvalidSourceSRT(),
		"unavailable": UnavailableSRT(),
		"archive":     ArchiveTooLargeSRT(),
		"error 429":   ErrorSRT("429", "quota exceeded"),
		"error other": ErrorSRT("other", ""),
	} {
		cues := Parse(content)
		require.NotEmpty(t, cues, name)
		assert.Equal(t, 4*time.Hour, cues[len(cues)-1].End, name)
	}
}

func TestAppendProgressTail(t *testing.T) {
	t.Parallel()

	out := AppendProgressTail(sampleSRT)
	cues := Parse(out)
	require.Len(t, cues, 4)

	tail := cues[3]
	assert.Equal(t, 62*time.Second, tail.Start)
	assert.Equal(t, 4*time.Hour, tail.End)
	assert.Contains(t, tail.Text, "TRANSLATION IN PROGRESS")

	// Monotone indices 1..N.
	for i, c := range cues {
		assert.Equal(t, i+1, c.Index)
	}
}

func TestAppendProgressTailRawText(t *testing.T) {
	t.Parallel()

	out := AppendProgressTail("not yet parseable output")
	assert.Contains(t, out, "TRANSLATION IN PROGRESS")
	assert.Contains(t, out, "04:00:00,000")
}
