// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func newTestResult(id uint64, title string) rawResult {
	return rawResult{
		ID:         id,
		Title:      title,
		AuthorInfo: `{"1":"Jane Doe"}`,
		Size:       "1.43 GiB",
		Category:   "audiobooks",
		Filetype:   "m4b",
		Seeders:    3,
		Free:       true,
		DLLink:     "/tor/download.php/1.torrent",
		AddedAt:    "2026-01-02 03:04:05",
	}
}

func TestSearchIteratesAcrossPages(t *testing.T) {
	t.Parallel()

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		page := r.URL.Query().Get("page")

		var resp searchResponse
		switch page {
		case "1":
			resp = searchResponse{
				Data:  []rawResult{newTestResult(100, "A Book"), newTestResult(101, "Another Book")},
				Found: 3,
			}
		case "2":
			resp = searchResponse{
				Data:  []rawResult{newTestResult(102, "Third Book")},
				Found: 3,
			}
		default:
			t.Fatalf("unexpected page %q", page)
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SessionID: "test-session"})
	it := client.Search(context.Background(), SearchQuery{Text: "a book", PerPage: 2})

	var got []uint64
	for {
		result, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, result.MamID)
	}

	require.Equal(t, []uint64{100, 101, 102}, got)
	require.Len(t, requests, 2)
}

func TestSearchConvertsResultFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Data: []rawResult{newTestResult(100, "A Book")}, Found: 1}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	it := client.Search(context.Background(), SearchQuery{Text: "a book"})

	result, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint64(100), result.MamID)
	require.True(t, result.GlobalFreeleech)
	require.Equal(t, []string{"Jane Doe"}, result.Meta.Authors)
	require.Equal(t, domain.MainCatAudio, *result.Meta.MainCat)
	size, err := domain.ParseSize("1.43 GiB")
	require.NoError(t, err)
	require.Equal(t, size, result.Meta.Size)

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSearchSkipsUnparseableResultsWithoutFailingPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bad := newTestResult(200, "Bad Size")
		bad.Size = "not a size"
		good := newTestResult(201, "Good")
		resp := searchResponse{Data: []rawResult{bad, good}, Found: 2}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	it := client.Search(context.Background(), SearchQuery{Text: "x"})

	result, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(201), result.MamID)

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUserInfo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jsonLoad.php", r.URL.Path)
		cookie, err := r.Cookie("mam_id")
		require.NoError(t, err)
		require.Equal(t, "test-session", cookie.Value)

		_, _ = w.Write([]byte(`{"username":"reader","buffer_bytes":500,"unsat":{"count":1,"limit":5},"wedges":3}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SessionID: "test-session"})
	info, err := client.UserInfo(context.Background())
	require.NoError(t, err)

	require.Equal(t, domain.TrackerUserInfo{
		Username:    "reader",
		BufferBytes: 500,
		UnsatCount:  1,
		UnsatLimit:  5,
		Wedges:      3,
	}, info)
}

func TestDownloadEnforcesSizeLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oversized := make([]byte, maxTorrentDownloadBytes+1)
		_, _ = w.Write(oversized)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Download(context.Background(), "/tor/download.php/1.torrent")
	require.ErrorIs(t, err, domain.ErrIO)
}

func TestDownloadNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Download(context.Background(), "/tor/download.php/1.torrent")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchByID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "100", r.URL.Query().Get("id"))
		require.NoError(t, json.NewEncoder(w).Encode(newTestResult(100, "A Book")))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	result, err := client.FetchByID(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), result.MamID)
}

func TestClientDefaultTimeout(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{})
	require.Equal(t, 10*time.Second, client.timeout)
	require.Equal(t, "https://www.myanonamouse.net", client.baseURL)
}
