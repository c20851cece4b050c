// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeebo/bencode"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func TestAdmission_FreeCostsAlwaysAdmit(t *testing.T) {
	t.Parallel()

	snapshot := creditSnapshot{unsatHeadroom: 0, wedges: 0}

	for _, cost := range []domain.TorrentCost{domain.TorrentCostVIP, domain.TorrentCostPersonalFreeleech, domain.TorrentCostGlobalFreeleech} {
		useWedge, admit := admission(&snapshot, cost, 0, 0)
		assert.True(t, admit)
		assert.False(t, useWedge)
	}
}

func TestAdmission_UseWedgeRequiresHeadroomAboveBuffer(t *testing.T) {
	t.Parallel()

	snapshot := creditSnapshot{wedges: 1}
	useWedge, admit := admission(&snapshot, domain.TorrentCostUseWedge, 0, 1)
	assert.False(t, admit)
	assert.False(t, useWedge)
	assert.Equal(t, uint64(1), snapshot.wedges)

	snapshot = creditSnapshot{wedges: 2}
	useWedge, admit = admission(&snapshot, domain.TorrentCostUseWedge, 0, 1)
	assert.True(t, admit)
	assert.True(t, useWedge)
	assert.Equal(t, uint64(1), snapshot.wedges)
}

func TestAdmission_TryWedgeFallsBackToRatio(t *testing.T) {
	t.Parallel()

	snapshot := creditSnapshot{wedges: 0, unsatHeadroom: 5}
	useWedge, admit := admission(&snapshot, domain.TorrentCostTryWedge, 1, 0)
	assert.True(t, admit)
	assert.False(t, useWedge)
	assert.Equal(t, uint64(4), snapshot.unsatHeadroom)
}

func TestAdmission_RatioBlockedAtBuffer(t *testing.T) {
	t.Parallel()

	snapshot := creditSnapshot{unsatHeadroom: 2}
	_, admit := admission(&snapshot, domain.TorrentCostRatio, 2, 0)
	assert.False(t, admit)

	snapshot = creditSnapshot{unsatHeadroom: 3}
	_, admit = admission(&snapshot, domain.TorrentCostRatio, 2, 0)
	assert.True(t, admit)
	assert.Equal(t, uint64(2), snapshot.unsatHeadroom)
}

func TestSaturatingSub(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(3), saturatingSub(5, 2))
	assert.Equal(t, uint64(0), saturatingSub(2, 5))
	assert.Equal(t, uint64(0), saturatingSub(2, 2))
}

func TestInfoHash_MatchesReencodedInfoDict(t *testing.T) {
	t.Parallel()

	info := map[string]any{"name": "book.m4b", "piece length": 16384, "pieces": "abcd"}
	infoBytes, err := bencode.Marshal(info)
	assert.NoError(t, err)

	torrent := map[string]bencode.RawMessage{
		"announce": bencode.RawMessage("7:tracker"),
		"info":     bencode.RawMessage(infoBytes),
	}
	torrentBytes, err := bencode.Marshal(torrent)
	assert.NoError(t, err)

	hash, err := infoHash(torrentBytes)
	assert.NoError(t, err)
	assert.Len(t, hash, 40)
	want := sha1.Sum(infoBytes)
	assert.Equal(t, hex.EncodeToString(want[:]), hash)

	again, err := infoHash(torrentBytes)
	assert.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestInfoHash_MissingInfoDictErrors(t *testing.T) {
	t.Parallel()

	torrentBytes, err := bencode.Marshal(map[string]string{"announce": "tracker"})
	assert.NoError(t, err)

	_, err = infoHash(torrentBytes)
	assert.Error(t, err)
}

func TestTagProfileFor_FirstMatchWins(t *testing.T) {
	t.Parallel()

	profiles := []domain.TagProfileConfig{
		{Name: "fiction", Filter: `"fiction" in Categories`, Category: "fiction-cat"},
		{Name: "catch-all", Filter: "", Category: "default-cat"},
	}

	p, ok := tagProfileFor(profiles, domain.TorrentMeta{Categories: []string{"fiction"}})
	assert.True(t, ok)
	assert.Equal(t, "fiction-cat", p.Category)

	p, ok = tagProfileFor(profiles, domain.TorrentMeta{Categories: []string{"nonfiction"}})
	assert.True(t, ok)
	assert.Equal(t, "default-cat", p.Category)
}

func TestTagProfileFor_NoneConfigured(t *testing.T) {
	t.Parallel()

	_, ok := tagProfileFor(nil, domain.TorrentMeta{})
	assert.False(t, ok)
}
