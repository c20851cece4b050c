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

// UpsertListItem inserts or replaces a ListItem keyed by (list_id, guid).
func (s *Store) UpsertListItem(ctx context.Context, li domain.ListItem) error {
	payload, err := encodeRecord(li)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO list_items (list_id, guid, created_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (list_id, guid) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, li.ListID, li.GUID, li.CreatedAt, CurrentListItemVersion, string(payload))
	if err != nil {
		return fmt.Errorf("%w: upsert list item %s/%s: %v", domain.ErrIO, li.ListID, li.GUID, err)
	}
	return nil
}

// GetListItem fetches a ListItem by (list_id, guid). Returns
// domain.ErrNotFound if absent.
func (s *Store) GetListItem(ctx context.Context, listID, guid string) (domain.ListItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schema_version, payload FROM list_items WHERE list_id = ? AND guid = ?
	`, listID, guid)

	var schemaVersion int
	var payload []byte
	if err := row.Scan(&schemaVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ListItem{}, fmt.Errorf("%w: list item", domain.ErrNotFound)
		}
		return domain.ListItem{}, fmt.Errorf("%w: scan list item: %v", domain.ErrIO, err)
	}

	var li domain.ListItem
	if err := decodeRecord(RecordTypeListItem, schemaVersion, payload, &li); err != nil {
		return domain.ListItem{}, err
	}
	return li, nil
}

// ListItemsByList returns every ListItem belonging to a list, oldest
// first, for the autograbber's per-list sweep.
func (s *Store) ListItemsByList(ctx context.Context, listID string) ([]domain.ListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, payload FROM list_items WHERE list_id = ?
		ORDER BY created_at ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("%w: query list items by list: %v", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.ListItem
	for rows.Next() {
		var schemaVersion int
		var payload []byte
		if err := rows.Scan(&schemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan list item row: %v", domain.ErrIO, err)
		}
		var li domain.ListItem
		if err := decodeRecord(RecordTypeListItem, schemaVersion, payload, &li); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}
