// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"testing"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOverwritesOnlyNonEmptyFields(t *testing.T) {
	t.Parallel()

	audio := domain.MainCatAudio
	stored := domain.TorrentMeta{
		Title:       "Old Title",
		Description: "old description",
		Authors:     []string{"Old Author"},
		Size:        1000,
		NumFiles:    3,
		MainCat:     &audio,
		Source:      domain.MetadataSourceMam,
	}
	incoming := domain.TorrentMeta{
		Title:   "New Title",
		Authors: []string{"New Author"},
		// Description, Size, NumFiles, MainCat left zero-value: must not
		// clobber stored's values.
	}

	merged := Merge(stored, incoming)

	assert.Equal(t, "New Title", merged.Title)
	assert.Equal(t, []string{"New Author"}, merged.Authors)
	assert.Equal(t, "old description", merged.Description)
	assert.EqualValues(t, 1000, merged.Size)
	assert.Equal(t, 3, merged.NumFiles)
	require.NotNil(t, merged.MainCat)
	assert.Equal(t, audio, *merged.MainCat)
	assert.Equal(t, domain.MetadataSourceMatch, merged.Source)
}

func TestMergeIDMapOverlayPreservesUnseenKeys(t *testing.T) {
	t.Parallel()

	stored := domain.TorrentMeta{
		IDs: map[string]string{"mam": "123", "isbn": "0000000000000"},
	}
	incoming := domain.TorrentMeta{
		IDs: map[string]string{"isbn": "9999999999999", "openlibrary": "OL1W"},
	}

	merged := Merge(stored, incoming)

	assert.Equal(t, "123", merged.IDs["mam"])
	assert.Equal(t, "9999999999999", merged.IDs["isbn"])
	assert.Equal(t, "OL1W", merged.IDs["openlibrary"])
}

func TestMergeLeavesStoredIDsWhenIncomingEmpty(t *testing.T) {
	t.Parallel()

	stored := domain.TorrentMeta{IDs: map[string]string{"mam": "123"}}
	merged := Merge(stored, domain.TorrentMeta{})

	assert.Equal(t, "123", merged.IDs["mam"])
}
