// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package formatrank implements the §4.4 dedup ranking shared by the
// autograbber (deciding whether a new candidate is strictly preferable
// to an existing stored Torrent, §4.2 step 3) and the linker (picking a
// winner among multiple Torrent rows mapping to the same library
// destination). Grounded on internal/services/crossseed's release
// comparison, generalized from video-release fields to book filetypes.
package formatrank

import (
	"time"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// Candidate is the subset of a Torrent (or a not-yet-stored candidate)
// formatrank needs to compare two items competing for the same place.
type Candidate struct {
	Meta       domain.TorrentMeta
	UploadedAt time.Time
}

// formatIndex returns candidate's best (lowest) ranking among preference,
// or len(preference) if none of its filetypes are listed.
func formatIndex(meta domain.TorrentMeta, preference []string) int {
	best := len(preference)
	for _, ft := range meta.Filetypes {
		for i, pref := range preference {
			if equalFold(ft, pref) && i < best {
				best = i
			}
		}
	}
	return best
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func isAbridged(meta domain.TorrentMeta) bool {
	return meta.Flags != nil && meta.Flags.Abridged != nil && *meta.Flags.Abridged
}

// Preferred reports whether a ranks strictly better than b under §4.4's
// dedup ordering: (a) format-family preference index, lower wins; (b)
// size, higher wins (a proxy for bitrate on audio and completeness on
// ebook, in the absence of a decoded duration); (c) absence of the
// abridged flag; (d) newer upload timestamp. Ties (by all four) return
// false for both orderings -- callers should keep the existing winner.
func Preferred(a, b Candidate, preference []string) bool {
	ai, bi := formatIndex(a.Meta, preference), formatIndex(b.Meta, preference)
	if ai != bi {
		return ai < bi
	}
	if a.Meta.Size != b.Meta.Size {
		return a.Meta.Size > b.Meta.Size
	}
	aAbridged, bAbridged := isAbridged(a.Meta), isAbridged(b.Meta)
	if aAbridged != bAbridged {
		return !aAbridged
	}
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.After(b.UploadedAt)
	}
	return false
}
