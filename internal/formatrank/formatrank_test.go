// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package formatrank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func TestPreferred_FormatIndexWins(t *testing.T) {
	t.Parallel()

	preference := []string{"m4b", "mp3"}
	m4b := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}}
	mp3 := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"mp3"}, Size: 200}}

	assert.True(t, Preferred(m4b, mp3, preference))
	assert.False(t, Preferred(mp3, m4b, preference))
}

func TestPreferred_SizeTiebreak(t *testing.T) {
	t.Parallel()

	preference := []string{"m4b"}
	bigger := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 200}}
	smaller := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}}

	assert.True(t, Preferred(bigger, smaller, preference))
}

func TestPreferred_AbridgedLoses(t *testing.T) {
	t.Parallel()

	yes := true
	preference := []string{"m4b"}
	abridged := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100, Flags: &domain.Flags{Abridged: &yes}}}
	unabridged := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}}

	assert.True(t, Preferred(unabridged, abridged, preference))
	assert.False(t, Preferred(abridged, unabridged, preference))
}

func TestPreferred_NewerUploadWins(t *testing.T) {
	t.Parallel()

	preference := []string{"m4b"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}, UploadedAt: now}
	older := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}, UploadedAt: now.Add(-time.Hour)}

	assert.True(t, Preferred(newer, older, preference))
}

func TestPreferred_ExactTieNeitherWins(t *testing.T) {
	t.Parallel()

	preference := []string{"m4b"}
	a := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}}
	b := Candidate{Meta: domain.TorrentMeta{Filetypes: []string{"m4b"}, Size: 100}}

	assert.False(t, Preferred(a, b, preference))
	assert.False(t, Preferred(b, a, preference))
}
