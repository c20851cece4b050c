// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"math"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// similarity scores two strings in [0, 1], 1 being identical: one minus
// fuzzy.LevenshteinDistance over the longer length, after lower-casing
// and trimming. fuzzysearch is already the pack's chosen fuzzy-match
// library, so no separate Levenshtein package is pulled in.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// bestAuthorSimilarity returns the highest similarity across every
// (candidate, query) author pairing.
func bestAuthorSimilarity(candidates, query []string) float64 {
	best := 0.0
	for _, c := range candidates {
		for _, q := range query {
			if s := similarity(c, q); s > best {
				best = s
			}
		}
	}
	return best
}

// scoreCandidate implements §4.5's scoring rule: title similarity and
// best-author similarity combined with equal weight when both the
// result and the query carry authors, title-only otherwise. The
// combination is a geometric mean rather than an arithmetic one, so a
// confident title match paired with a clearly wrong author still drags
// the score well under threshold instead of floating right at the
// midpoint.
func scoreCandidate(resultTitle string, resultAuthors []string, queryTitle string, queryAuthors []string) float64 {
	titleScore := similarity(resultTitle, queryTitle)
	if len(resultAuthors) == 0 || len(queryAuthors) == 0 {
		return titleScore
	}
	authorScore := bestAuthorSimilarity(resultAuthors, queryAuthors)
	return math.Sqrt(titleScore * authorScore)
}
