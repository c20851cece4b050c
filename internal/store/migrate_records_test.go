// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateTorrentV0ToV1Total(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"id":           "abc123",
		"title_search": "the example book",
	}

	version, err := ApplyRecordMigrations(RecordTypeTorrent, 0, data)
	require.NoError(t, err)
	require.Equal(t, CurrentTorrentVersion, version)
	require.Contains(t, data, "library_mismatch")
	require.Nil(t, data["library_mismatch"])
	require.Equal(t, false, data["request_metadata_update"])
}

func TestMigrateTorrentV0ToV1PreservesExistingFields(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"id":                      "abc123",
		"library_mismatch":        map[string]any{"kind": "new_path", "new_path": "/library/x"},
		"request_metadata_update": true,
	}

	_, err := ApplyRecordMigrations(RecordTypeTorrent, 0, data)
	require.NoError(t, err)
	require.Equal(t, true, data["request_metadata_update"])
	require.NotNil(t, data["library_mismatch"])
}

func TestApplyRecordMigrationsUnregisteredVersionIsNoop(t *testing.T) {
	t.Parallel()

	data := map[string]any{"id": "abc123"}
	version, err := ApplyRecordMigrations(RecordTypeTorrent, CurrentTorrentVersion, data)
	require.NoError(t, err)
	require.Equal(t, CurrentTorrentVersion, version)
}

// A Torrent payload at its current version must decode with no migration
// applied: the schema-totality property §8.1 requires, checked here for the
// Torrent record type.
func TestDecodeRecordAtCurrentVersionIsIdentity(t *testing.T) {
	t.Parallel()

	payload, err := encodeRecord(map[string]any{
		"id":           "abc123",
		"title_search": "the example book",
		"created_at":   "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	var out map[string]any
	err = decodeRecord(RecordTypeTorrent, CurrentTorrentVersion, payload, &out)
	require.NoError(t, err)
	require.Equal(t, "abc123", out["id"])
}

func TestDecodeRecordRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	var out map[string]any
	err := decodeRecord(RecordTypeTorrent, CurrentTorrentVersion, []byte("not json"), &out)
	require.Error(t, err)
}
