// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package linker

import (
	"testing"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func TestSelectBestFile_PrefersConfiguredFormat(t *testing.T) {
	t.Parallel()

	files := qbt.TorrentFiles{
		{Name: "book.mp3", Size: 1000},
		{Name: "book.m4b", Size: 900},
	}

	best, ok := selectBestFile(files, []string{"m4b", "mp3"})
	assert.True(t, ok)
	assert.Equal(t, "book.m4b", best.Name)
}

func TestSelectBestFile_LargerWinsOnFormatTie(t *testing.T) {
	t.Parallel()

	files := qbt.TorrentFiles{
		{Name: "part1.m4b", Size: 100},
		{Name: "part2.m4b", Size: 500},
	}

	best, ok := selectBestFile(files, []string{"m4b"})
	assert.True(t, ok)
	assert.Equal(t, "part2.m4b", best.Name)
}

func TestSelectBestFile_UnlistedFormatRanksLast(t *testing.T) {
	t.Parallel()

	files := qbt.TorrentFiles{
		{Name: "cover.jpg", Size: 100000},
		{Name: "book.epub", Size: 500},
	}

	best, ok := selectBestFile(files, []string{"epub"})
	assert.True(t, ok)
	assert.Equal(t, "book.epub", best.Name)
}

func TestDestinationPath_BuildsAuthorTitlePath(t *testing.T) {
	t.Parallel()

	meta := domain.TorrentMeta{Title: "Mistborn", Authors: []string{"Brandon Sanderson"}}
	dest, err := destinationPath("/library", meta, "book.m4b")
	assert.NoError(t, err)
	assert.Equal(t, "/library/Brandon Sanderson/Mistborn.m4b", dest)
}

func TestDestinationPath_RequiresLibraryDir(t *testing.T) {
	t.Parallel()

	_, err := destinationPath("", domain.TorrentMeta{Title: "x"}, "a.m4b")
	assert.Error(t, err)
}

func TestSanitizeSegment_ReplacesPathSeparators(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Some-Author", sanitizeSegment("Some/Author"))
	assert.Equal(t, "Unknown", sanitizeSegment("   "))
}

func TestSelectBestLocalFile_PrefersConfiguredFormat(t *testing.T) {
	t.Parallel()

	best, ok := selectBestLocalFile([]string{"book.mp3", "book.m4b"}, []string{"m4b", "mp3"})
	assert.True(t, ok)
	assert.Equal(t, "book.m4b", best)
}

func TestSelectBestLocalFile_UnlistedFormatRanksLast(t *testing.T) {
	t.Parallel()

	best, ok := selectBestLocalFile([]string{"cover.jpg", "book.epub"}, []string{"epub"})
	assert.True(t, ok)
	assert.Equal(t, "book.epub", best)
}

func TestSelectBestLocalFile_EmptyDirectoryReturnsFalse(t *testing.T) {
	t.Parallel()

	_, ok := selectBestLocalFile(nil, []string{"m4b"})
	assert.False(t, ok)
}

func TestFindPendingByTitle_MatchesOnTitleSearch(t *testing.T) {
	t.Parallel()

	pending := []domain.SelectedTorrent{
		{TitleSearch: "mistborn", Meta: domain.TorrentMeta{Title: "Mistborn"}},
		{TitleSearch: "elantris", Meta: domain.TorrentMeta{Title: "Elantris"}},
	}

	sel, ok := findPendingByTitle(pending, "elantris")
	assert.True(t, ok)
	assert.Equal(t, "Elantris", sel.Meta.Title)

	_, ok = findPendingByTitle(pending, "warbreaker")
	assert.False(t, ok)
}
