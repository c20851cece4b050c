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

// UpsertList inserts or replaces a List keyed by id.
func (s *Store) UpsertList(ctx context.Context, l domain.List) error {
	payload, err := encodeRecord(l)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lists (id, title, schema_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, l.ID, l.Title, CurrentListVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert list %s: %v", domain.ErrIO, l.ID, err)
	}
	return nil
}

// GetList fetches a List by id. Returns domain.ErrNotFound if absent.
func (s *Store) GetList(ctx context.Context, id string) (domain.List, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, payload FROM lists WHERE id = ?`, id)

	var schemaVersion int
	var payload []byte
	if err := row.Scan(&schemaVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.List{}, fmt.Errorf("%w: list", domain.ErrNotFound)
		}
		return domain.List{}, fmt.Errorf("%w: scan list: %v", domain.ErrIO, err)
	}

	var l domain.List
	if err := decodeRecord(RecordTypeList, schemaVersion, payload, &l); err != nil {
		return domain.List{}, err
	}
	return l, nil
}

// ListLists returns every configured List.
func (s *Store) ListLists(ctx context.Context) ([]domain.List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT schema_version, payload FROM lists ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: query lists: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.List
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan list row: %v", domain.ErrIO, err)
		}
		var l domain.List
		if err := decodeRecord(RecordTypeList, schemaVersion, payload, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
