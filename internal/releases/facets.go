// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"regexp"
	"strings"

	"github.com/moistari/rls"
)

// Facets holds the quality attributes extracted from a release filename.
// Parsing is pure: no network, no state, same input always yields same output.
type Facets struct {
	Resolution     string // 4k, 1080p, 720p, 480p, 360p or empty
	RipType        string // canonical rip type, empty if undetected
	RipTier        int    // 1 = best sync priority, 12 = worst, 0 = unknown
	Codec          string // canonical video codec (AVC, HEVC, AV1, XVID, ...)
	Audio          string // canonical audio codec set
	HDR            string // DV, HDR10+, HDR10, HDR, or empty
	Platform       string // streaming platform tag (AMZN, NF, ...) or empty
	Group          string // release group, lowercased
	IsPopularGroup bool
	Edition        string // extended, unrated, directors.cut, theatrical, imax, remastered
	Proper         bool   // PROPER or REPACK
	Year           int
	Season         int
	Episode        int

	// TitleBase is the title portion before the year / episode marker, with
	// separators collapsed to single spaces. Used by the match scorer.
	TitleBase string
	// Tokens are the separator-split lowercase tokens of the whole name.
	Tokens []string
}

// ripTiers orders rip types by subtitle sync compatibility. Web downloads
// sync with each other far more often than disc or broadcast rips do.
var ripTiers = map[string]int{
	"web-dl":   1,
	"webrip":   2,
	"web":      3,
	"bdremux":  4,
	"bluray":   4,
	"bdrip":    5,
	"hdtv":     6,
	"pdtv":     7,
	"dvdrip":   8,
	"hdrip":    9,
	"dvdscr":   10,
	"screener": 10,
	"telesync": 11,
	"cam":      12,
}

// ripTypePatterns is checked in order: specific tokens before generic ones so
// "web-dl" never falls through to plain "web".
var ripTypePatterns = []struct {
	ripType string
	re      *regexp.Regexp
}{
	{"web-dl", regexp.MustCompile(`(?i)\bweb[-._ ]?dl\b`)},
	{"webrip", regexp.MustCompile(`(?i)\bweb[-._ ]?rip\b`)},
	{"bdremux", regexp.MustCompile(`(?i)\bbd[-._ ]?remux\b|\bremux\b`)},
	{"bdrip", regexp.MustCompile(`(?i)\bbd[-._ ]?rip\b|\bbrrip\b`)},
	{"bluray", regexp.MustCompile(`(?i)\bblu[-._ ]?ray\b|\bbd(25|50)\b`)},
	{"hdtv", regexp.MustCompile(`(?i)\bhdtv\b`)},
	{"pdtv", regexp.MustCompile(`(?i)\bpdtv\b`)},
	{"dvdscr", regexp.MustCompile(`(?i)\bdvd[-._ ]?scr(eener)?\b`)},
	{"dvdrip", regexp.MustCompile(`(?i)\bdvd[-._ ]?rip\b`)},
	{"hdrip", regexp.MustCompile(`(?i)\bhd[-._ ]?rip\b`)},
	{"telesync", regexp.MustCompile(`(?i)\btelesync\b|\bhd-?ts\b|(^|[. _-])ts([. _-]|$)`)},
	{"screener", regexp.MustCompile(`(?i)\bscreener\b|\bscr\b`)},
	{"cam", regexp.MustCompile(`(?i)\bcam(rip)?\b`)},
	{"web", regexp.MustCompile(`(?i)\bweb\b`)},
}

// hdrPatterns: hdr10+ must be tried before hdr10, hdr10 before bare hdr.
var hdrPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"DV", regexp.MustCompile(`(?i)\bdovi\b|\bdolby[-._ ]?vision\b|(^|[. _-])dv([. _-]|$)`)},
	{"HDR10+", regexp.MustCompile(`(?i)\bhdr10\+|\bhdr10plus\b`)},
	{"HDR10", regexp.MustCompile(`(?i)\bhdr10\b`)},
	{"HDR", regexp.MustCompile(`(?i)\bhdr\b`)},
}

// platformAliases normalizes streaming service tags.
var platformAliases = map[string]string{
	"AMZN":    "AMZN",
	"AMAZON":  "AMZN",
	"NF":      "NF",
	"NETFLIX": "NF",
	"DSNP":    "DSNP",
	"DISNEY":  "DSNP",
	"HMAX":    "HMAX",
	"MAX":     "HMAX",
	"ATVP":    "ATVP",
	"APTV":    "ATVP",
	"HULU":    "HULU",
	"PCOK":    "PCOK",
	"PMTP":    "PMTP",
	"STAN":    "STAN",
	"ITVX":    "ITVX",
}

// popularGroups is the fixed allow-list of widely mirrored release groups.
// Subtitles labeled with these groups are much more likely to be in sync with
// the equally widely mirrored video releases.
var popularGroups = map[string]struct{}{
	"rarbg":          {},
	"yts":            {},
	"yify":           {},
	"yts.mx":         {},
	"sparks":         {},
	"geckos":         {},
	"ctrlhd":         {},
	"ntb":            {},
	"flux":           {},
	"cmrg":           {},
	"evo":            {},
	"ethel":          {},
	"kogi":           {},
	"minx":           {},
	"galaxytv":       {},
	"megusta":        {},
	"successfulcrab": {},
	"ggez":           {},
	"ggwp":           {},
	"edith":          {},
	"amiable":        {},
	"rovers":         {},
	"psychd":         {},
	"veto":           {},
	"tepes":          {},
	"phoenix":        {},
}

var editionPatterns = []struct {
	edition string
	re      *regexp.Regexp
}{
	{"directors.cut", regexp.MustCompile(`(?i)\bdirector'?s?[-._ ]?cut\b|\bdc\b`)},
	{"extended", regexp.MustCompile(`(?i)\bextended\b`)},
	{"unrated", regexp.MustCompile(`(?i)\bunrated\b`)},
	{"theatrical", regexp.MustCompile(`(?i)\btheatrical\b`)},
	{"imax", regexp.MustCompile(`(?i)\bimax\b`)},
	{"remastered", regexp.MustCompile(`(?i)\bremaster(ed)?\b`)},
}

var (
	reProper    = regexp.MustCompile(`(?i)\b(proper|repack)\b`)
	reRemux     = regexp.MustCompile(`(?i)\bremux\b`)
	reYear      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reEpisode   = regexp.MustCompile(`(?i)\bs(\d{1,2})[ ._]?e(\d{1,3})\b`)
	reSeparator = regexp.MustCompile(`[. _\-\[\]()+]+`)

	reBracketGroup = regexp.MustCompile(`\[([A-Za-z0-9._-]{2,})\]`)
	reParenGroup   = regexp.MustCompile(`\(([A-Za-z0-9._-]{2,})\)\s*(\.\w+)?$`)
	reDashGroup    = regexp.MustCompile(`-([A-Za-z0-9]{2,})(\.\w+)?$`)
)

// Parse extracts quality facets from a release filename.
func Parse(name string) Facets {
	f := Facets{}
	if strings.TrimSpace(name) == "" {
		return f
	}

	base := stripExtension(name)
	r := rls.ParseString(base)

	f.Resolution = normalizeResolution(r.Resolution, base)
	f.RipType = detectRipType(r.Source, base)
	f.RipTier = ripTiers[f.RipType]
	f.Codec = JoinNormalizedCodecSlice(r.Codec)
	f.Audio = joinNormalizedAudio(r.Audio)
	f.HDR = detectHDR(base)
	f.Platform = detectPlatform(r.Collection, base)
	f.Group = extractGroup(r.Group, base)
	_, f.IsPopularGroup = popularGroups[f.Group]
	f.Edition = detectEdition(base)
	f.Proper = reProper.MatchString(base)
	f.Year = r.Year
	f.Season = r.Series
	f.Episode = r.Episode

	f.TitleBase = titleBase(base)
	f.Tokens = tokenize(base)

	return f
}

func stripExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".mkv", ".mp4", ".avi", ".m4v", ".ts", ".srt", ".ass", ".ssa", ".vtt", ".sub"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

func normalizeResolution(parsed, name string) string {
	switch strings.ToLower(parsed) {
	case "2160p", "4k":
		return "4k"
	case "1080p", "1080i":
		return "1080p"
	case "720p":
		return "720p"
	case "480p", "576p":
		return "480p"
	case "360p":
		return "360p"
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "2160p") || strings.Contains(lower, "4k") || strings.Contains(lower, "uhd"):
		return "4k"
	case strings.Contains(lower, "1080"):
		return "1080p"
	case strings.Contains(lower, "720"):
		return "720p"
	case strings.Contains(lower, "480") || strings.Contains(lower, "576"):
		return "480p"
	case strings.Contains(lower, "360p"):
		return "360p"
	}
	return ""
}

func detectRipType(parsedSource, name string) string {
	// rls gives us a source for most names; map it through the alias table
	// first and only fall back to pattern scanning when it is absent.
	if parsedSource != "" {
		switch NormalizeSource(parsedSource) {
		case "WEBDL":
			return "web-dl"
		case "WEBRIP":
			return "webrip"
		case "WEB":
			// Ambiguous; the filename may still carry the specific form.
		case "BLURAY":
			if reRemux.MatchString(name) {
				return "bdremux"
			}
			return "bluray"
		case "BDRIP", "BRRIP":
			return "bdrip"
		case "HDTV":
			return "hdtv"
		case "PDTV":
			return "pdtv"
		case "DVDRIP", "DVD":
			return "dvdrip"
		case "HDRIP":
			return "hdrip"
		case "CAM":
			return "cam"
		case "TELESYNC", "TS":
			return "telesync"
		case "SCREENER", "SCR", "DVDSCR":
			return "dvdscr"
		}
	}

	for _, p := range ripTypePatterns {
		if p.re.MatchString(name) {
			return p.ripType
		}
	}
	return ""
}

func detectHDR(name string) string {
	for _, p := range hdrPatterns {
		if p.re.MatchString(name) {
			return p.name
		}
	}
	return ""
}

func detectPlatform(parsedCollection, name string) string {
	if parsedCollection != "" {
		if canonical, ok := platformAliases[strings.ToUpper(parsedCollection)]; ok {
			return canonical
		}
	}
	for _, token := range strings.Split(strings.ToUpper(reSeparator.ReplaceAllString(name, " ")), " ") {
		if canonical, ok := platformAliases[token]; ok {
			return canonical
		}
	}
	return ""
}

// extractGroup tries, in order: the rls-parsed group, [GROUP], (GROUP),
// trailing -GROUP, then a trailing bare token of at least two alphanumerics.
func extractGroup(parsedGroup, name string) string {
	if parsedGroup != "" {
		return strings.ToLower(parsedGroup)
	}
	if m := reBracketGroup.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	if m := reParenGroup.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	if m := reDashGroup.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	tokens := tokenize(name)
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if len(last) >= 2 && isAlphanumeric(last) {
			return last
		}
	}
	return ""
}

func detectEdition(name string) string {
	for _, p := range editionPatterns {
		if p.re.MatchString(name) {
			return p.edition
		}
	}
	return ""
}

// titleBase strips everything from the year or episode marker onward and
// collapses separators, so "Show.S02E05.1080p..." becomes "show".
func titleBase(name string) string {
	cut := len(name)
	if loc := reEpisode.FindStringIndex(name); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	if loc := reYear.FindStringIndex(name); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	base := reSeparator.ReplaceAllString(name[:cut], " ")
	return strings.ToLower(strings.TrimSpace(base))
}

func tokenize(name string) []string {
	raw := reSeparator.Split(strings.ToLower(name), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func joinNormalizedAudio(audio []string) string {
	if len(audio) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(audio))
	out := make([]string, 0, len(audio))
	for _, a := range audio {
		n := normalizeAudio(a)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, " ")
}

var audioAliases = map[string]string{
	"DDP":    "DDP",
	"DD+":    "DDP",
	"EAC3":   "DDP",
	"E-AC-3": "DDP",
	"DD":     "DD",
	"AC3":    "DD",
	"AC-3":   "DD",
	"DTS-HD": "DTS-HD",
	"DTS":    "DTS",
	"TRUEHD": "TRUEHD",
	"ATMOS":  "ATMOS",
	"AAC":    "AAC",
	"OPUS":   "OPUS",
	"FLAC":   "FLAC",
	"MP3":    "MP3",
}

func normalizeAudio(a string) string {
	upper := strings.ToUpper(strings.TrimSpace(a))
	if canonical, ok := audioAliases[upper]; ok {
		return canonical
	}
	return upper
}
