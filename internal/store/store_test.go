// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stirlingmouse/mlm/internal/domain"
)

var testDBCounter atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()

	name := fmt.Sprintf("file:store_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBCounter.Add(1))
	conn, err := sql.Open("sqlite", name)
	require.NoError(t, err)

	db := NewForTest(conn)
	require.NoError(t, db.MigrateForTest())

	s := WrapForTest(db)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestUpsertAndGetTorrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	torrent := domain.Torrent{
		ID:          "abc123",
		TitleSearch: "the example book",
		Meta: domain.TorrentMeta{
			Title: "The Example Book",
			IDs:   map[string]string{"mam": "555"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, s.UpsertTorrent(ctx, torrent))

	got, err := s.GetTorrent(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, torrent.TitleSearch, got.TitleSearch)
	require.Equal(t, torrent.Meta.Title, got.Meta.Title)

	// Re-upsert with a changed field must replace, not duplicate.
	torrent.LibraryPath = "/library/example"
	require.NoError(t, s.UpsertTorrent(ctx, torrent))

	got2, err := s.GetTorrent(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "/library/example", got2.LibraryPath)
}

func TestGetTorrentNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetTorrent(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindTorrentsByTitleSearch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.UpsertTorrent(ctx, domain.Torrent{
			ID:          id,
			TitleSearch: "shared title",
			CreatedAt:   time.Now().UTC(),
		}))
	}
	require.NoError(t, s.UpsertTorrent(ctx, domain.Torrent{
		ID:          "c",
		TitleSearch: "different title",
		CreatedAt:   time.Now().UTC(),
	}))

	found, err := s.FindTorrentsByTitleSearch(ctx, "shared title")
	require.NoError(t, err)
	require.Len(t, found, 2)
}

// TestGrabThenErrorThenSucceedClearsErroredTorrent reproduces spec.md's
// S6 scenario: an autograbber failure records an ErroredTorrent, and a
// later success at the same key deletes it rather than leaving history.
func TestGrabThenErrorThenSucceedClearsErroredTorrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id := domain.GrabberID(555)
	require.NoError(t, s.UpsertErroredTorrent(ctx, domain.ErroredTorrent{
		ID:        id,
		Title:     "The Example Book",
		Error:     "tracker unreachable",
		CreatedAt: time.Now().UTC(),
	}))

	stored, err := s.GetErroredTorrent(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "tracker unreachable", stored.Error)

	require.NoError(t, s.DeleteErroredTorrent(ctx, id))

	_, err = s.GetErroredTorrent(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelectedTorrentPendingList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	removed := now.Add(time.Minute)

	require.NoError(t, s.UpsertSelectedTorrent(ctx, domain.SelectedTorrent{
		MamID:       1,
		TitleSearch: "pending book",
		CreatedAt:   now,
	}))
	require.NoError(t, s.UpsertSelectedTorrent(ctx, domain.SelectedTorrent{
		MamID:       2,
		TitleSearch: "already handled",
		CreatedAt:   now,
		RemovedAt:   &removed,
	}))

	pending, err := s.ListPendingSelectedTorrents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, uint64(1), pending[0].MamID)
}

func TestDuplicateTorrentLookup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDuplicateTorrent(ctx, domain.DuplicateTorrent{
		MamID:       10,
		TitleSearch: "duplicate title",
		DuplicateOf: "abc123",
		CreatedAt:   time.Now().UTC(),
	}))

	dups, err := s.ListDuplicateTorrentsByTitleSearch(ctx, "duplicate title")
	require.NoError(t, err)
	require.Len(t, dups, 1)
	require.Equal(t, "abc123", dups[0].DuplicateOf)
}

func TestEventJournalAppendOnly(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertEvent(ctx, domain.Event{
		ID:        "ev1",
		TorrentID: "abc123",
		Type:      domain.EventTypeGrabbed,
		CreatedAt: time.Now().UTC(),
		Grabbed:   &domain.EventGrabbed{Grabber: "autograbber-1"},
	}))
	require.NoError(t, s.InsertEvent(ctx, domain.Event{
		ID:        "ev2",
		TorrentID: "abc123",
		Type:      domain.EventTypeLinked,
		CreatedAt: time.Now().UTC(),
		Linked:    &domain.EventLinked{Linker: "hardlink", LibraryPath: "/library/example"},
	}))

	events, err := s.ListEventsByTorrent(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventTypeGrabbed, events[0].Type)
	require.Equal(t, domain.EventTypeLinked, events[1].Type)
}

func TestListAndListItems(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertList(ctx, domain.List{
		ID:    "list1",
		Title: "To Read",
		URL:   "https://example.com/list1",
	}))

	require.NoError(t, s.UpsertListItem(ctx, domain.ListItem{
		GUID:      "item1",
		ListID:    "list1",
		Title:     "The Example Book",
		Authors:   []string{"Jane Author"},
		CreatedAt: time.Now().UTC(),
	}))

	items, err := s.ListItemsByList(ctx, "list1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "The Example Book", items[0].Title)

	got, err := s.GetListItem(ctx, "list1", "item1")
	require.NoError(t, err)
	require.Equal(t, []string{"Jane Author"}, got.Authors)
}
