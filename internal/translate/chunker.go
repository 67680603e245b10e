// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package translate

import (
	"math"
	"strings"
)

// Token accounting is an estimate: roughly three bytes per token, padded 10%
// so we err on the side of chunking.
const (
	singleShotTokenLimit = 25000
	// outputCapRatio: sources estimated above this fraction of the model's
	// output cap are chunked even under the absolute limit.
	outputCapRatio = 0.4

	chunkTargetTokens = 12000
	// packSlackRatio lets a chunk run slightly over target rather than
	// splitting an entry off on its own.
	packSlackRatio = 1.2
	// loneChunkRatio: a single entry this far over target becomes its own
	// chunk instead of being packed.
	loneChunkRatio = 1.5

	contextEntriesBefore = 6
	contextEntriesAfter  = 3
)

// EstimateTokens estimates the token count of a text.
func EstimateTokens(s string) int {
	return int(math.Ceil(math.Ceil(float64(len(s))/3) * 1.1))
}

// Chunk is a run of consecutive SRT entries to translate together, with
// surrounding context entries that are shown to the model but not translated.
type Chunk struct {
	Entries []string
	Before  []string
	After   []string
}

// Text returns the translatable body of the chunk.
func (c Chunk) Text() string {
	return strings.Join(c.Entries, "\n\n")
}

// splitEntries splits SRT text into entries on blank-line boundaries,
// tolerating CRLF and runs of blank lines.
func splitEntries(srt string) []string {
	srt = strings.ReplaceAll(srt, "\r\n", "\n")
	srt = strings.ReplaceAll(srt, "\r", "\n")

	var entries []string
	for _, block := range strings.Split(srt, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			entries = append(entries, block)
		}
	}
	return entries
}

// buildChunks greedily packs entries up to the target budget and attaches
// before/after context windows from the surrounding source.
func buildChunks(entries []string, targetTokens int) []Chunk {
	if targetTokens <= 0 {
		targetTokens = chunkTargetTokens
	}
	budget := int(float64(targetTokens) * packSlackRatio)
	lone := int(float64(targetTokens) * loneChunkRatio)

	type span struct{ start, end int }
	var spans []span

	start := 0
	tokens := 0
	for i, entry := range entries {
		t := EstimateTokens(entry)

		if t > lone {
			// Oversize entry stands alone.
			if i > start {
				spans = append(spans, span{start, i})
			}
			spans = append(spans, span{i, i + 1})
			start = i + 1
			tokens = 0
			continue
		}

		if tokens > 0 && tokens+t > budget {
			spans = append(spans, span{start, i})
			start = i
			tokens = 0
		}
		tokens += t
	}
	if start < len(entries) {
		spans = append(spans, span{start, len(entries)})
	}

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		before := max(0, sp.start-contextEntriesBefore)
		after := min(len(entries), sp.end+contextEntriesAfter)

		chunks = append(chunks, Chunk{
			Entries: entries[sp.start:sp.end],
			Before:  entries[before:sp.start],
			After:   entries[sp.end:after],
		})
	}
	return chunks
}

// buildPrompt renders the instruction for one chunk. Context sections are
// explicitly fenced off so the model translates only the working set.
func buildPrompt(chunk Chunk, targetLanguage string) string {
	var sb strings.Builder

	sb.WriteString("You are a professional subtitle translator. Translate the SRT subtitle entries in the TRANSLATE-ONLY section into ")
	sb.WriteString(targetLanguage)
	sb.WriteString(".\n\nRules:\n")
	sb.WriteString("- Keep every entry index and timecode line exactly as given.\n")
	sb.WriteString("- Translate only the text lines; keep the number of entries identical.\n")
	sb.WriteString("- Preserve line breaks within an entry where natural.\n")
	sb.WriteString("- Output raw SRT only: no commentary, no code fences.\n")

	if len(chunk.Before) > 0 {
		sb.WriteString("\n=== CONTEXT BEFORE (DO NOT TRANSLATE, DO NOT OUTPUT) ===\n")
		sb.WriteString(strings.Join(chunk.Before, "\n\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n=== TRANSLATE-ONLY ===\n")
	sb.WriteString(chunk.Text())
	sb.WriteString("\n")

	if len(chunk.After) > 0 {
		sb.WriteString("\n=== CONTEXT AFTER (DO NOT TRANSLATE, DO NOT OUTPUT) ===\n")
		sb.WriteString(strings.Join(chunk.After, "\n\n"))
		sb.WriteString("\n")
	}

	return sb.String()
}

// CleanOutput strips model wrapping from a response: code fences, stray
// leading/trailing whitespace, and CR line endings.
func CleanOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = ""
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
