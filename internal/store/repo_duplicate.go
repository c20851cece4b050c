// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// UpsertDuplicateTorrent inserts or replaces a DuplicateTorrent keyed by
// mam_id.
func (s *Store) UpsertDuplicateTorrent(ctx context.Context, t domain.DuplicateTorrent) error {
	payload, err := encodeRecord(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO duplicate_torrents (mam_id, title_search, created_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (mam_id) DO UPDATE SET
			title_search = excluded.title_search,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, t.MamID, t.TitleSearch, t.CreatedAt, CurrentDuplicateTorrentVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert duplicate torrent %d: %v", domain.ErrIO, t.MamID, err)
	}
	return nil
}

// ListDuplicateTorrentsByTitleSearch returns every recorded duplicate
// sharing a title_search value.
func (s *Store) ListDuplicateTorrentsByTitleSearch(ctx context.Context, titleSearch string) ([]domain.DuplicateTorrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM duplicate_torrents WHERE title_search = ?
	`, titleSearch)
	if err != nil {
		return nil, fmt.Errorf("%w: query duplicate torrents by title_search: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.DuplicateTorrent
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan duplicate torrent row: %v", domain.ErrIO, err)
		}
		var t domain.DuplicateTorrent
		if err := decodeRecord(RecordTypeDuplicateTorrent, schemaVersion, payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
