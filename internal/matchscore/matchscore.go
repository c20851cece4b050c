// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matchscore scores how well a tracker search result's title and
// authors match a list item's, on a 0-100 scale. This is a distinct
// concern from internal/metadata's 0-1 provider-result scoring
// (internal/metadata/scoring.go's similarity/scoreCandidate): that
// package decides whether a metadata provider's candidate describes the
// same book as a TorrentMeta already on file, while matchscore decides
// whether a freshly grabbed torrent fulfills a pending list item's
// request (§4.7). Both lean on the pack's fuzzysearch dependency, but
// keep the scales and thresholds separate since they answer different
// questions at different points in the pipeline.
package matchscore

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// TitleThreshold and AuthorThreshold are the minimum scores (§4.7) a
// candidate must clear to count as fulfilling a list item's title and
// author respectively.
const (
	TitleThreshold  = 80
	AuthorThreshold = 90
)

// Title scores a candidate title against a list item's title on a 0-100
// scale, 100 being identical after case, punctuation and space
// normalization.
func Title(candidate, want string) int {
	return score(candidate, want)
}

// BestAuthor scores the best-matching pair across every (candidate,
// want) author combination, 0 if either side has no authors.
func BestAuthor(candidates, want []string) int {
	best := 0
	for _, c := range candidates {
		for _, w := range want {
			if s := score(c, w); s > best {
				best = s
			}
		}
	}
	return best
}

// score normalizes both strings (lower-cased, runs of punctuation and
// space collapsed to one space) and converts fuzzy.LevenshteinDistance
// into a 0-100 similarity, mirroring internal/metadata/scoring.go's
// similarity but rescaled ([0,1] -> [0,100]) since §4.7's thresholds
// (80/90) are expressed on the 0-100 scale.
func score(a, b string) int {
	isSep := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }
	a = strings.Join(strings.FieldsFunc(strings.ToLower(a), isSep), " ")
	b = strings.Join(strings.FieldsFunc(strings.ToLower(b), isSep), " ")
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	s := 100 - (dist*100)/maxLen
	if s < 0 {
		s = 0
	}
	return s
}

// Matches reports whether a candidate title/authors pair fulfills a list
// item's requested title/authors per §4.7's dual threshold: the title
// must clear TitleThreshold, and -- only when the item names authors --
// the best author pairing must clear AuthorThreshold.
func Matches(candidateTitle string, candidateAuthors []string, wantTitle string, wantAuthors []string) bool {
	if Title(candidateTitle, wantTitle) < TitleThreshold {
		return false
	}
	if len(wantAuthors) == 0 {
		return true
	}
	return BestAuthor(candidateAuthors, wantAuthors) >= AuthorThreshold
}
