// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func erroredKey(id domain.ErroredTorrentID) string {
	if id.Key != "" {
		return id.Key
	}
	return fmt.Sprintf("%d", id.MamID)
}

// UpsertErroredTorrent inserts or replaces the last-failure record for a
// (stage, key) pair.
func (s *Store) UpsertErroredTorrent(ctx context.Context, t domain.ErroredTorrent) error {
	payload, err := encodeRecord(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO errored_torrents (stage, key, created_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (stage, key) DO UPDATE SET
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, string(t.ID.Stage), erroredKey(t.ID), t.CreatedAt, CurrentErroredTorrentVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert errored torrent %s/%s: %v", domain.ErrIO, t.ID.Stage, erroredKey(t.ID), err)
	}
	return nil
}

// DeleteErroredTorrent removes the failure record for a (stage, key)
// pair, per §3.3's invariant that a later success clears the prior
// failure entirely rather than accumulating history.
func (s *Store) DeleteErroredTorrent(ctx context.Context, id domain.ErroredTorrentID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM errored_torrents WHERE stage = ? AND key = ?
	`, string(id.Stage), erroredKey(id))
	if err != nil {
		return fmt.Errorf("%w: delete errored torrent %s/%s: %v", domain.ErrIO, id.Stage, erroredKey(id), err)
	}
	return nil
}

// GetErroredTorrent fetches the failure record for a (stage, key) pair.
// Returns domain.ErrNotFound if there is none outstanding.
func (s *Store) GetErroredTorrent(ctx context.Context, id domain.ErroredTorrentID) (domain.ErroredTorrent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schema_version, payload FROM errored_torrents WHERE stage = ? AND key = ?
	`, string(id.Stage), erroredKey(id))

	var schemaVersion int
	var payload []byte
	if err := row.Scan(&schemaVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErroredTorrent{}, fmt.Errorf("%w: errored torrent", domain.ErrNotFound)
		}
		return domain.ErroredTorrent{}, fmt.Errorf("%w: scan errored torrent: %v", domain.ErrIO, err)
	}

	var t domain.ErroredTorrent
	if err := decodeRecord(RecordTypeErroredTorrent, schemaVersion, payload, &t); err != nil {
		return domain.ErroredTorrent{}, err
	}
	return t, nil
}

// ListErroredTorrentsByStage returns every outstanding failure for a
// pipeline stage.
func (s *Store) ListErroredTorrentsByStage(ctx context.Context, stage domain.ErroredTorrentStage) ([]domain.ErroredTorrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM errored_torrents WHERE stage = ?
		ORDER BY created_at ASC
	`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("%w: query errored torrents by stage: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.ErroredTorrent
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan errored torrent row: %v", domain.ErrIO, err)
		}
		var t domain.ErroredTorrent
		if err := decodeRecord(RecordTypeErroredTorrent, schemaVersion, payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
