// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// UpsertSelectedTorrent inserts or replaces a SelectedTorrent keyed by
// mam_id.
func (s *Store) UpsertSelectedTorrent(ctx context.Context, t domain.SelectedTorrent) error {
	payload, err := encodeRecord(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selected_torrents (mam_id, title_search, created_at, removed_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (mam_id) DO UPDATE SET
			title_search = excluded.title_search,
			removed_at = excluded.removed_at,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, t.MamID, t.TitleSearch, t.CreatedAt, nullableTime(t.RemovedAt), CurrentSelectedTorrentVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert selected torrent %d: %v", domain.ErrIO, t.MamID, err)
	}
	return nil
}

// GetSelectedTorrent fetches a SelectedTorrent by mam_id. Returns
// domain.ErrNotFound if absent.
func (s *Store) GetSelectedTorrent(ctx context.Context, mamID uint64) (domain.SelectedTorrent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, payload FROM selected_torrents WHERE mam_id = ?`, mamID)

	var schemaVersion int
	var payload []byte
	if err := row.Scan(&schemaVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SelectedTorrent{}, fmt.Errorf("%w: selected torrent", domain.ErrNotFound)
		}
		return domain.SelectedTorrent{}, fmt.Errorf("%w: scan selected torrent: %v", domain.ErrIO, err)
	}

	var t domain.SelectedTorrent
	if err := decodeRecord(RecordTypeSelectedTorrent, schemaVersion, payload, &t); err != nil {
		return domain.SelectedTorrent{}, err
	}
	return t, nil
}

// ListPendingSelectedTorrents returns every SelectedTorrent that has not
// yet been removed (started or still queued), ordered oldest-first for
// the downloader to drain in FIFO order.
func (s *Store) ListPendingSelectedTorrents(ctx context.Context) ([]domain.SelectedTorrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM selected_torrents
		WHERE removed_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query pending selected torrents: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.SelectedTorrent
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan selected torrent row: %v", domain.ErrIO, err)
		}
		var t domain.SelectedTorrent
		if err := decodeRecord(RecordTypeSelectedTorrent, schemaVersion, payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
