// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package subtitle implements tolerant SRT parsing and serialization plus the
// synthesized subtitle files the service uses to communicate state to viewers.
package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is a single SRT entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

var (
	reTimecodeLine = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)
	// reInlineTimecode matches stray timecodes a model occasionally copies
	// into translated text.
	reInlineTimecode = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}`)
)

// Parse reads SRT text into cues. It is tolerant: CRLF and CR are accepted,
// malformed blocks are skipped rather than failing the whole file, and indices
// are taken from block order when the numeric header is missing or wrong.
func Parse(content string) []Cue {
	normalized := normalizeNewlines(content)

	var cues []Cue
	for _, block := range strings.Split(normalized, "\n\n") {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}

		// Optional numeric index line before the timecode.
		i := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil && len(lines) > 1 {
			i = 1
		}

		m := reTimecodeLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		start, end := parsedTimes(m)

		text := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return cues
}

// Format serializes cues to SRT with LF line endings and sequential indices.
func Format(cues []Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n")
		sb.WriteString(FormatTimecode(c.Start))
		sb.WriteString(" --> ")
		sb.WriteString(FormatTimecode(c.End))
		sb.WriteString("\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTimecode renders a duration as an SRT timecode (HH:MM:SS,mmm).
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Reindex renumbers cues sequentially from 1, in place.
func Reindex(cues []Cue) {
	for i := range cues {
		cues[i].Index = i + 1
	}
}

// Sanitize drops cues with empty text, removes stray timecodes a model
// embedded inside cue text, and reindexes from 1.
func Sanitize(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		text := strings.TrimSpace(reInlineTimecode.ReplaceAllString(c.Text, ""))
		if text == "" {
			continue
		}
		c.Text = text
		out = append(out, c)
	}
	Reindex(out)
	return out
}

func parsedTimes(m []string) (time.Duration, time.Duration) {
	return timecode(m[1], m[2], m[3], m[4]), timecode(m[5], m[6], m[7], m[8])
}

func timecode(h, m, s, ms string) time.Duration {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	// Fractional part may be 1-3 digits; pad so ".5" means 500ms.
	for len(ms) < 3 {
		ms += "0"
	}
	msi, _ := strconv.Atoi(ms)
	return time.Duration(hi)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(si)*time.Second +
		time.Duration(msi)*time.Millisecond
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimPrefix(s, "\ufeff")
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
