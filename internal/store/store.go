// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

// Store is the persistent store handle every pipeline shares (§5
// "shared resources"). It wraps the single-writer DB with one
// repository method set per record type.
type Store struct {
	db *DB
}

// New opens the store at databasePath, running schema migrations and
// starting the write goroutine.
func New(databasePath string) (*Store, error) {
	db, err := openDB(databasePath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// WrapForTest wraps an existing *DB (e.g. from NewForTest on an
// in-memory connection) as a Store.
func WrapForTest(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}
