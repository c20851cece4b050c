// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func mamIDFromMeta(meta domain.TorrentMeta) sql.NullInt64 {
	raw, ok := meta.IDs["mam"]
	if !ok {
		return sql.NullInt64{}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// UpsertTorrent inserts or replaces a Torrent row keyed by ID.
func (s *Store) UpsertTorrent(ctx context.Context, t domain.Torrent) error {
	payload, err := encodeRecord(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO torrents (id, hash, title_search, mam_id, created_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			hash = excluded.hash,
			title_search = excluded.title_search,
			mam_id = excluded.mam_id,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, t.ID, nullableString(t.Hash), t.TitleSearch, mamIDFromMeta(t.Meta), t.CreatedAt, CurrentTorrentVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert torrent %s: %v", domain.ErrIO, t.ID, err)
	}
	return nil
}

// GetTorrent fetches a Torrent by id. Returns domain.ErrNotFound if absent.
func (s *Store) GetTorrent(ctx context.Context, id string) (domain.Torrent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, payload FROM torrents WHERE id = ?`, id)
	return scanTorrent(row)
}

// FindTorrentsByTitleSearch returns every Torrent sharing a title_search
// value, used by the linker/library-matcher to find match candidates.
func (s *Store) FindTorrentsByTitleSearch(ctx context.Context, titleSearch string) ([]domain.Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT schema_version, payload FROM torrents WHERE title_search = ?`, titleSearch)
	if err != nil {
		return nil, fmt.Errorf("%w: query torrents by title_search: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.Torrent
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan torrent row: %v", domain.ErrIO, err)
		}
		var t domain.Torrent
		if err := decodeRecord(RecordTypeTorrent, schemaVersion, payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTorrents returns every known Torrent. Used by the cleaner and
// library matcher, which both need to scan for rows matching a payload
// condition (ReplacedWith set, library_mismatch present) with no
// dedicated SQL column to filter on.
func (s *Store) ListAllTorrents(ctx context.Context) ([]domain.Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT schema_version, payload FROM torrents`)
	if err != nil {
		return nil, fmt.Errorf("%w: query all torrents: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.Torrent
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan torrent row: %v", domain.ErrIO, err)
		}
		var t domain.Torrent
		if err := decodeRecord(RecordTypeTorrent, schemaVersion, payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTorrent(row *sql.Row) (domain.Torrent, error) {
	var schemaVersion int
	var payload []byte
	if err := row.Scan(&schemaVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Torrent{}, fmt.Errorf("%w: torrent", domain.ErrNotFound)
		}
		return domain.Torrent{}, fmt.Errorf("%w: scan torrent: %v", domain.ErrIO, err)
	}

	var t domain.Torrent
	if err := decodeRecord(RecordTypeTorrent, schemaVersion, payload, &t); err != nil {
		return domain.Torrent{}, err
	}
	return t, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
