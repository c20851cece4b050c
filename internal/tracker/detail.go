// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// maxTorrentDownloadBytes caps a downloaded .torrent payload, grounded on
// jackett.Client's identical safety limit.
const maxTorrentDownloadBytes int64 = 16 << 20

// FetchByID retrieves one torrent's detail record directly, used by the
// linker/library matcher when they need current tracker state for an
// mam_id already on file rather than re-running a search.
func (c *Client) FetchByID(ctx context.Context, mamID uint64) (Result, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatUint(mamID, 10))

	var raw rawResult
	if err := c.doJSON(ctx, "/tor/js/loadSingleTorrent.php", query, &raw); err != nil {
		return Result{}, fmt.Errorf("fetch torrent %d: %w", mamID, err)
	}
	return raw.toResult()
}

// Download retrieves the raw .torrent bytes for a download link as
// returned by a Result, resolving a relative link against the tracker's
// base URL. Grounded on jackett.Client.Download's size-capped,
// status-checked request shape.
func (c *Client) Download(ctx context.Context, dlLink string) ([]byte, error) {
	if strings.TrimSpace(dlLink) == "" {
		return nil, fmt.Errorf("%w: download link is empty", domain.ErrParse)
	}

	endpoint := dlLink
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = c.baseURL + "/" + strings.TrimLeft(dlLink, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Accept", "application/x-bittorrent, application/octet-stream")
	req.AddCookie(&http.Cookie{Name: "mam_id", Value: c.sessionID})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: torrent download failed: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: torrent download returned 404", domain.ErrNotFound)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: torrent download returned status %d", domain.ErrNetwork, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxTorrentDownloadBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: read torrent body: %v", domain.ErrIO, err)
	}
	if int64(len(data)) > maxTorrentDownloadBytes {
		return nil, fmt.Errorf("%w: torrent download exceeded %d bytes", domain.ErrIO, maxTorrentDownloadBytes)
	}

	return data, nil
}

// userInfoResponse is the tracker's credit-status JSON shape, grounded on
// the original UserResponse/Unsats structs (src/mam/user_data.rs):
// unsat{count, limit} and wedges carry over unchanged; buffer_bytes
// replaces the original's seedbonus/ratio-derived buffer calculation
// with a single pre-computed field.
type userInfoResponse struct {
	Username    string `json:"username"`
	BufferBytes uint64 `json:"buffer_bytes"`
	Unsat       struct {
		Count uint64 `json:"count"`
		Limit uint64 `json:"limit"`
	} `json:"unsat"`
	Wedges uint64 `json:"wedges"`
}

// UserInfo reads the authenticated user's credit snapshot (§4.3 step 1).
func (c *Client) UserInfo(ctx context.Context) (domain.TrackerUserInfo, error) {
	var resp userInfoResponse
	if err := c.doJSON(ctx, "/jsonLoad.php", nil, &resp); err != nil {
		return domain.TrackerUserInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	return domain.TrackerUserInfo{
		Username:    resp.Username,
		BufferBytes: resp.BufferBytes,
		UnsatCount:  resp.Unsat.Count,
		UnsatLimit:  resp.Unsat.Limit,
		Wedges:      resp.Wedges,
	}, nil
}
