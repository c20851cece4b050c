// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"encoding/json"
	"fmt"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// RecordType is the numeric type-id from §6.1's version table.
type RecordType int

const (
	RecordTypeConfig           RecordType = 1
	RecordTypeTorrent          RecordType = 2
	RecordTypeSelectedTorrent  RecordType = 3
	RecordTypeDuplicateTorrent RecordType = 4
	RecordTypeErroredTorrent   RecordType = 5
	RecordTypeEvent            RecordType = 6
	RecordTypeList             RecordType = 7
	RecordTypeListItem         RecordType = 8
)

// Current schema version written for each record type. Bump the
// constant and register a migrationFunc keyed at the prior version
// whenever a record's Go shape changes.
const (
	CurrentTorrentVersion          = 1
	CurrentSelectedTorrentVersion  = 1
	CurrentDuplicateTorrentVersion = 1
	CurrentErroredTorrentVersion   = 1
	CurrentEventVersion            = 1
	CurrentListVersion             = 1
	CurrentListItemVersion         = 1
)

// migrationKey identifies one registered migration: "bring a payload of
// this record type from this version to the next version up".
type migrationKey struct {
	recordType RecordType
	fromVersion int
}

// migrationFunc mutates a decoded JSON map in place, transforming it
// from fromVersion's shape to fromVersion+1's shape. It must be total
// over any well-formed input at fromVersion (§3.3 invariant 7, §8.1).
type migrationFunc func(data map[string]any) error

// recordMigrations holds every registered record-shape migration. This
// initial version ships no prior schema versions of its own, but the
// registry and the v0 example below demonstrate and test the mechanism
// spec.md requires: the same mechanism a future schema change will add
// an entry to, grounded on original_source/mlm_db/src/v05.rs's
// From<v03::Torrent> pattern (adding library_mismatch with a default).
var recordMigrations = map[migrationKey]migrationFunc{
	{RecordTypeTorrent, 0}: migrateTorrentV0ToV1,
}

// migrateTorrentV0ToV1 models the kind of migration v05.rs performs when
// it introduces Torrent.library_mismatch: a field absent from the prior
// shape is filled with its zero value so decode into the current struct
// succeeds without the caller special-casing old rows.
func migrateTorrentV0ToV1(data map[string]any) error {
	if _, ok := data["library_mismatch"]; !ok {
		data["library_mismatch"] = nil
	}
	if _, ok := data["request_metadata_update"]; !ok {
		data["request_metadata_update"] = false
	}
	return nil
}

// ApplyRecordMigrations walks the registered migration chain for
// recordType starting at fromVersion, mutating data in place, and
// returns the version the data ends up at. An unregistered
// (recordType, version) pair is treated as already current: the chain
// simply stops there.
func ApplyRecordMigrations(recordType RecordType, fromVersion int, data map[string]any) (int, error) {
	version := fromVersion
	for {
		fn, ok := recordMigrations[migrationKey{recordType, version}]
		if !ok {
			return version, nil
		}
		if err := fn(data); err != nil {
			return version, fmt.Errorf("%w: migrate record type %d from version %d: %v", domain.ErrInvariantViolated, recordType, version, err)
		}
		version++
	}
}

// decodeRecord unmarshals a stored payload into dst, first running it
// through any pending record-shape migrations for recordType.
func decodeRecord(recordType RecordType, schemaVersion int, payload []byte, dst any) error {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("%w: unmarshal %d payload: %v", domain.ErrParse, recordType, err)
	}

	if _, err := ApplyRecordMigrations(recordType, schemaVersion, data); err != nil {
		return err
	}

	migrated, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: remarshal migrated %d payload: %v", domain.ErrParse, recordType, err)
	}

	if err := json.Unmarshal(migrated, dst); err != nil {
		return fmt.Errorf("%w: decode migrated %d payload: %v", domain.ErrParse, recordType, err)
	}
	return nil
}

func encodeRecord(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", domain.ErrParse, err)
	}
	return b, nil
}
