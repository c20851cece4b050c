// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/stirlingmouse/mlm/pkg/stringutils"
)

var titleSearchNormalizer = stringutils.NewNormalizer(5*time.Minute, normalizeTitleInner)

// editorialMarkerPattern strips bracketed/parenthesized editorial asides
// like "(Unabridged)" or "[Audiobook]" entirely, markers and all.
var editorialMarkerPattern = regexp.MustCompile(`[\(\[][^\)\]]*[\)\]]`)

// volumeTokenPattern strips standalone volume/book/part numbering tokens
// such as "vol 3", "book 2", "#4", "part 1". Only numeric tokens are
// matched; spelled-out numbers ("part one") are left in place.
var volumeTokenPattern = regexp.MustCompile(`(?i)\b(?:vol(?:ume)?|book|part|no)\.?\s*\d+\b|#\d+`)

var articlePattern = regexp.MustCompile(`(?i)^(a|an|the)\s+`)

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// TitleSearch normalizes a title into the canonical form used for the
// title_search secondary key and for matching (§3.2). The result is
// cached; the transform itself is pure and safe to call directly when a
// cache would not pay for itself.
func TitleSearch(title string) string {
	return titleSearchNormalizer.Normalize(title)
}

func normalizeTitleInner(title string) string {
	ascii := transliterateToASCII(title)
	lower := strings.ToLower(ascii)
	lower = strings.ReplaceAll(lower, "&", "and")
	lower = editorialMarkerPattern.ReplaceAllString(lower, " ")
	lower = volumeTokenPattern.ReplaceAllString(lower, " ")
	lower = articlePattern.ReplaceAllString(lower, "")
	collapsed := nonAlnumPattern.ReplaceAllString(lower, " ")
	return strings.TrimSpace(collapsed)
}

// transliterateToASCII strips combining diacritical marks (e.g. "é" ->
// "e") via NFD decomposition. Other non-ASCII characters are left as
// they are.
func transliterateToASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// setOverlaps reports whether two string slices share at least one
// element, case-insensitively. Two empty slices do not overlap.
func setOverlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[strings.ToLower(v)]; ok {
			return true
		}
	}
	return false
}

// scalarAgrees reports whether two optional scalar strings agree: equal,
// or at least one is empty (unset).
func scalarAgrees(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}

// Matches implements the §3.2 relaxed equality rule used to decide
// whether two TorrentMeta values describe the same book: every
// set-valued field must share at least one element (when both sides have
// any), every scalar field must agree or be unset on one side, and flags
// must agree on every bit both sides have explicitly set; a bit set on
// only one side is not a conflict.
func (m TorrentMeta) Matches(other TorrentMeta) bool {
	if len(m.Authors) > 0 && len(other.Authors) > 0 && !setOverlaps(m.Authors, other.Authors) {
		return false
	}
	if len(m.Narrators) > 0 && len(other.Narrators) > 0 && !setOverlaps(m.Narrators, other.Narrators) {
		return false
	}
	if len(m.Categories) > 0 && len(other.Categories) > 0 && !setOverlaps(m.Categories, other.Categories) {
		return false
	}
	if len(m.Tags) > 0 && len(other.Tags) > 0 && !setOverlaps(m.Tags, other.Tags) {
		return false
	}
	if len(m.Filetypes) > 0 && len(other.Filetypes) > 0 && !setOverlaps(m.Filetypes, other.Filetypes) {
		return false
	}
	if len(m.Series) > 0 && len(other.Series) > 0 {
		mine := make([]string, len(m.Series))
		for i, s := range m.Series {
			mine[i] = s.Name
		}
		theirs := make([]string, len(other.Series))
		for i, s := range other.Series {
			theirs[i] = s.Name
		}
		if !setOverlaps(mine, theirs) {
			return false
		}
	}

	if !scalarAgrees(m.Edition, other.Edition) {
		return false
	}
	if !scalarAgrees(m.Language, other.Language) {
		return false
	}
	if m.MainCat != nil && other.MainCat != nil && *m.MainCat != *other.MainCat {
		return false
	}
	if m.MediaType != nil && other.MediaType != nil && *m.MediaType != *other.MediaType {
		return false
	}

	if m.Flags != nil && other.Flags != nil {
		mine, theirs := m.Flags.fields(), other.Flags.fields()
		for i := range mine {
			if mine[i] != nil && theirs[i] != nil && *mine[i] != *theirs[i] {
				return false
			}
		}
	}

	return true
}

// TorrentsMatch implements the full §3.2 match rule between two
// Torrents: equal title_search plus a relaxed meta match.
func TorrentsMatch(a, b TorrentMeta, titleSearchA, titleSearchB string) bool {
	return titleSearchA == titleSearchB && a.Matches(b)
}
