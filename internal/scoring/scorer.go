// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scoring ranks subtitle candidates against the release the player is
// actually streaming. Scores only order candidates; their absolute values
// carry no meaning outside this package.
package scoring

import (
	"math"
	"regexp"
	"strings"

	"github.com/subgloss/subgloss/internal/releases"
)

// ExactMatchScore is returned when the two names are identical apart from
// their file extensions.
const ExactMatchScore = 10000

const (
	sameGroupPopular     = 5000
	sameGroup            = 4000
	differentGroup       = -100
	candidatePopular     = 200
	baseTitleMatch       = 500
	sameRipType          = 2500
	adjacentRipTier      = 800
	nearRipTier          = 300
	farRipTier           = -500
	samePlatform         = 1200
	differentPlatform    = -200
	sameResolution       = 1000
	crossHDResolution    = 400
	higherResolution     = 200
	lowerResolution      = -200
	sameCodec            = 500
	compatibleCodec      = 200
	sameAudio            = 400
	sameHDR              = 600
	differentHDR         = -150
	sameEdition          = 1500
	mismatchedEdition    = -1000
	oneSidedEdition      = -300
	properMatch          = 800
	properMismatch       = -400
	tokenBonusMultiplier = 100
)

var (
	reYearToken    = regexp.MustCompile(`^(19|20)\d{2}$`)
	reEpisodeToken = regexp.MustCompile(`^s\d{1,2}e\d{1,3}$|^s\d{1,2}$|^e\d{1,3}$`)
	reNumericToken = regexp.MustCompile(`^\d+$`)
)

var editionTokens = map[string]struct{}{
	"extended":   {},
	"unrated":    {},
	"directors":  {},
	"theatrical": {},
	"imax":       {},
	"remastered": {},
}

// Score rates how well a candidate subtitle's release name matches the release
// the player is streaming. Identical inputs always produce identical outputs.
func Score(streamFilename, candidateName string) int {
	if streamFilename == "" || candidateName == "" {
		return 0
	}

	if strings.EqualFold(trimExt(streamFilename), trimExt(candidateName)) {
		return ExactMatchScore
	}

	stream := releases.Parse(streamFilename)
	candidate := releases.Parse(candidateName)

	// If the title bases are unrelated this is a different work entirely,
	// regardless of how well the quality facets line up.
	if !titlesRelated(stream.TitleBase, candidate.TitleBase) {
		return 0
	}

	score := float64(baseTitleMatch)
	criticalMatches := 0

	switch {
	case stream.Group != "" && stream.Group == candidate.Group:
		if candidate.IsPopularGroup {
			score += sameGroupPopular
		} else {
			score += sameGroup
		}
		criticalMatches++
	case stream.Group != "" && candidate.Group != "":
		score += differentGroup
	case stream.Group == "" && candidate.IsPopularGroup:
		score += candidatePopular
	}

	if stream.RipTier > 0 && candidate.RipTier > 0 {
		if stream.RipType == candidate.RipType {
			score += sameRipType
			criticalMatches++
		} else {
			switch delta := abs(stream.RipTier - candidate.RipTier); delta {
			case 0, 1:
				score += adjacentRipTier
			case 2:
				score += nearRipTier
			default:
				score += farRipTier
			}
		}
	}

	if stream.Platform != "" && candidate.Platform != "" {
		if stream.Platform == candidate.Platform {
			score += samePlatform
		} else {
			score += differentPlatform
		}
	}

	if stream.Resolution != "" && candidate.Resolution != "" {
		switch {
		case stream.Resolution == candidate.Resolution:
			score += sameResolution
			criticalMatches++
		case isHDCross(stream.Resolution, candidate.Resolution):
			score += crossHDResolution
		case resolutionRank(candidate.Resolution) > resolutionRank(stream.Resolution):
			score += higherResolution
		default:
			score += lowerResolution
		}
	}

	if stream.Codec != "" && candidate.Codec != "" {
		if stream.Codec == candidate.Codec {
			score += sameCodec
		} else if releases.CompatibleCodecs(stream.Codec, candidate.Codec) {
			score += compatibleCodec
		}
	}

	if stream.Audio != "" && stream.Audio == candidate.Audio {
		score += sameAudio
	}

	if stream.HDR != "" || candidate.HDR != "" {
		if stream.HDR == candidate.HDR {
			score += sameHDR
		} else {
			score += differentHDR
		}
	}

	score += float64(sharedTokenBonus(stream.Tokens, candidate.Tokens) * tokenBonusMultiplier)

	switch {
	case stream.Edition != "" && stream.Edition == candidate.Edition:
		score += sameEdition
	case stream.Edition != "" && candidate.Edition != "":
		score += mismatchedEdition
	case stream.Edition != "" || candidate.Edition != "":
		score += oneSidedEdition
	}

	if stream.Proper == candidate.Proper {
		score += properMatch
	} else {
		score += properMismatch
	}

	// Structural bonuses reward names that cover each other well overall.
	if ratio := tokenLengthRatio(stream.Tokens, candidate.Tokens); ratio > 0.8 {
		score *= 1.3
	} else if ratio > 0.6 {
		score *= 1.15
	}

	if criticalMatches >= 3 {
		score *= 1.5
	} else if criticalMatches == 2 {
		score *= 1.25
	}

	if len(candidate.Tokens) < 2 {
		score *= 0.5
	}

	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}

func trimExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 && len(name)-idx <= 5 {
		return name[:idx]
	}
	return name
}

func titlesRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sharedTokenBonus(streamTokens, candidateTokens []string) int {
	streamSet := make(map[string]struct{}, len(streamTokens))
	for _, t := range streamTokens {
		streamSet[t] = struct{}{}
	}

	bonus := 0
	seen := make(map[string]struct{}, len(candidateTokens))
	for _, t := range candidateTokens {
		if _, ok := streamSet[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		switch {
		case reYearToken.MatchString(t):
			bonus += 3
		case reEpisodeToken.MatchString(t):
			bonus += 4
		case reNumericToken.MatchString(t):
			bonus += 2
		default:
			if _, ok := editionTokens[t]; ok {
				bonus += 2
			} else {
				bonus++
			}
		}
	}
	return bonus
}

func tokenLengthRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) / float64(longer)
}

func resolutionRank(res string) int {
	switch res {
	case "4k":
		return 5
	case "1080p":
		return 4
	case "720p":
		return 3
	case "480p":
		return 2
	case "360p":
		return 1
	}
	return 0
}

func isHDCross(a, b string) bool {
	return (a == "720p" && b == "1080p") || (a == "1080p" && b == "720p")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
