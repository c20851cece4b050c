// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// InsertEvent appends an Event. Events are never updated or deleted:
// the journal is the audit trail §4.6 requires.
func (s *Store) InsertEvent(ctx context.Context, e domain.Event) error {
	payload, err := encodeRecord(e)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, torrent_id, mam_id, created_at, event_type, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, nullableString(e.TorrentID), nullableUint64(e.MamID), e.CreatedAt, string(e.Type), CurrentEventVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: insert event %s: %v", domain.ErrIO, e.ID, err)
	}
	return nil
}

// ListEventsByTorrent returns every event recorded against a torrent id,
// oldest first.
func (s *Store) ListEventsByTorrent(ctx context.Context, torrentID string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM events WHERE torrent_id = ?
		ORDER BY created_at ASC
	`, torrentID)
	if err != nil {
		return nil, fmt.Errorf("%w: query events by torrent: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsSince returns every event recorded at or after since, oldest
// first, for the status/stats surface.
func (s *Store) ListEventsSince(ctx context.Context, since sql.NullTime) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM events WHERE created_at >= ?
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("%w: query events since: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var out []domain.Event
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan event row: %v", domain.ErrIO, err)
		}
		var e domain.Event
		if err := decodeRecord(RecordTypeEvent, schemaVersion, payload, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableUint64(v uint64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}
