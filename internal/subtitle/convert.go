// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package subtitle

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reASSTime   = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})\.(\d{2})$`)
	reASSMarkup = regexp.MustCompile(`\{[^}]*\}`)
)

// IsVTT reports whether the content is a WebVTT file. VTT is served verbatim.
func IsVTT(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(normalizeNewlines(content)), "WEBVTT")
}

// IsASS reports whether the content looks like an ASS/SSA subtitle script.
func IsASS(content string) bool {
	head := strings.ToLower(normalizeNewlines(content))
	return strings.Contains(head, "[script info]") || strings.Contains(head, "[events]")
}

// ASSToSRT converts ASS/SSA dialogue events into SRT. Styling override blocks
// are stripped; \N becomes a line break. Events are emitted in script order.
func ASSToSRT(content string) string {
	var (
		cues     []Cue
		format   []string
		inEvents bool
	)

	for _, line := range strings.Split(normalizeNewlines(content), "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(lower, "["):
			inEvents = lower == "[events]"
		case inEvents && strings.HasPrefix(lower, "format:"):
			format = splitASSFields(trimmed[len("format:"):], -1)
		case inEvents && strings.HasPrefix(lower, "dialogue:"):
			cue, ok := parseDialogue(trimmed[len("dialogue:"):], format)
			if ok {
				cue.Index = len(cues) + 1
				cues = append(cues, cue)
			}
		}
	}

	return Format(cues)
}

func parseDialogue(line string, format []string) (Cue, bool) {
	fieldCount := len(format)
	if fieldCount == 0 {
		// Standard v4+ event layout.
		fieldCount = 10
	}
	fields := splitASSFields(line, fieldCount)
	if len(fields) < fieldCount {
		return Cue{}, false
	}

	startIdx, endIdx, textIdx := 1, 2, fieldCount-1
	for i, name := range format {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "start":
			startIdx = i
		case "end":
			endIdx = i
		case "text":
			textIdx = i
		}
	}

	start, ok := parseASSTime(fields[startIdx])
	if !ok {
		return Cue{}, false
	}
	end, ok := parseASSTime(fields[endIdx])
	if !ok {
		return Cue{}, false
	}

	text := reASSMarkup.ReplaceAllString(fields[textIdx], "")
	text = strings.ReplaceAll(text, `\N`, "\n")
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return Cue{}, false
	}

	return Cue{Start: start, End: end, Text: text}, true
}

// splitASSFields splits a comma-separated ASS line into at most n fields; the
// final field (the text) keeps its embedded commas.
func splitASSFields(line string, n int) []string {
	parts := strings.SplitN(line, ",", n)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseASSTime(s string) (time.Duration, bool) {
	m := reASSTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(cs)*10*time.Millisecond, true
}
