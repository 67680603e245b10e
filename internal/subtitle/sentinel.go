// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package subtitle

import (
	"strings"
	"time"
)

// sentinelEnd is where synthesized cues stop. Four hours outlasts any film, so
// the message stays visible wherever the viewer seeks. It is a sentinel, not a
// duration cap.
const sentinelEnd = 4 * time.Hour

// progressTailText is appended to partial translations so a viewer who loaded
// an in-flight result knows more is coming.
const progressTailText = "TRANSLATION IN PROGRESS\nReload this subtitle later to get more"

// LoadingSRT tells the viewer a translation has started in the background.
func LoadingSRT(targetLanguage string) string {
	return spanningMessage(
		"Translating to "+targetLanguage+"...",
		"The translation is running in the background.\nRe-select this subtitle in a minute to load the result.",
	)
}

// ConcurrencyLimitSRT tells the viewer they hit the per-user translation cap.
func ConcurrencyLimitSRT() string {
	return spanningMessage(
		"Too many translations in progress",
		"Wait for one of your running translations to finish,\nthen select this subtitle again.",
	)
}

// InvalidSourceSRT reports an unusable source subtitle (too small or garbage).
func InvalidSourceSRT() string {
	return spanningMessage(
		"This subtitle could not be used",
		"The downloaded file was empty or invalid.\nTry another subtitle from the list.",
	)
}

// ArchiveTooLargeSRT reports an oversized provider archive.
func ArchiveTooLargeSRT() string {
	return spanningMessage(
		"Subtitle archive too large",
		"The provider returned an archive above the size limit.\nTry another subtitle from the list.",
	)
}

// UnavailableSRT reports a subtitle the provider no longer serves.
func UnavailableSRT() string {
	return spanningMessage(
		"Subtitle unavailable",
		"The provider could not deliver this file.\nTry another subtitle from the list.",
	)
}

// ErrorSRT renders a terminal translation error as a subtitle so the viewer
// sees the cause. Selecting the entry again retries.
func ErrorSRT(errorType, message string) string {
	headline := "Translation failed"
	detail := "Select this subtitle again to retry."

	switch errorType {
	case "429":
		headline = "Translation rate-limited (429)"
		detail = "The translation API rejected the request for quota reasons.\nWait a little and select this subtitle again."
	case "503":
		headline = "Translation service overloaded (503)"
		detail = "The model is temporarily unavailable.\nSelect this subtitle again to retry."
	case "MAX_TOKENS":
		headline = "Translation hit the output limit"
		detail = "The subtitle was too large for a single pass.\nSelect this subtitle again to retry with chunking."
	case "SAFETY":
		headline = "Translation blocked by safety filters"
		detail = "The model refused to translate this content.\nAnother subtitle for the same release may work."
	case "RECITATION":
		headline = "Translation blocked (recitation)"
		detail = "The model refused this content as verbatim recitation.\nAnother subtitle for the same release may work."
	case "INVALID_SOURCE":
		return InvalidSourceSRT()
	}

	if message != "" {
		detail = detail + "\n" + truncate(message, 160)
	}
	return spanningMessage(headline, detail)
}

// AppendProgressTail prepares a partial translation for serving: the parseable
// cues are reindexed and a trailing sentinel cue runs from the last end time
// to the four-hour mark. When nothing parses yet, a short raw tail block is
// appended instead so the output is still valid SRT-ish text.
func AppendProgressTail(partial string) string {
	cues := Sanitize(Parse(partial))
	if len(cues) == 0 {
		raw := strings.TrimSpace(partial)
		tail := "1\n00:00:00,000 --> " + FormatTimecode(sentinelEnd) + "\n" + progressTailText + "\n"
		if raw == "" {
			return tail
		}
		return raw + "\n\n" + tail
	}

	last := cues[len(cues)-1].End
	if last >= sentinelEnd {
		last = sentinelEnd - time.Second
	}
	cues = append(cues, Cue{
		Start: last,
		End:   sentinelEnd,
		Text:  progressTailText,
	})
	Reindex(cues)
	return Format(cues)
}

// spanningMessage builds a short SRT whose cues cover the whole sentinel
// timeline: a headline up front, then the detail repeated so it is visible
// regardless of seek position.
func spanningMessage(headline, detail string) string {
	cues := []Cue{
		{Start: 0, End: 10 * time.Second, Text: headline},
		{Start: 10 * time.Second, End: 2 * time.Minute, Text: headline + "\n" + detail},
		{Start: 2 * time.Minute, End: sentinelEnd, Text: detail},
	}
	Reindex(cues)
	return Format(cues)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
