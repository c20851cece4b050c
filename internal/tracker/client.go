// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tracker wraps the upstream MyAnonamouse-style site API: search,
// fetch-by-id, download, and user credit info (§2 component D, §6.3). It
// is the daemon's only outbound dependency on the tracker itself; the
// torrent-client adapter (internal/qbittorrent) is separate.
package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stirlingmouse/mlm/internal/buildinfo"
)

// defaultTimeout matches §5's "tracker API 10s" default suspension
// budget.
const defaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the tracker's site root, e.g. "https://www.myanonamouse.net".
	BaseURL string
	// SessionID is the tracker_id auth token (§6.2), sent as the
	// session cookie on every request.
	SessionID string
	Timeout   time.Duration
}

// Client is a context-scoped HTTP client for the tracker's JSON API,
// grounded on internal/services/jackett.Client's request-building and
// status/size-limited download handling.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a Client. An empty BaseURL defaults to the public
// MyAnonamouse site root.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.myanonamouse.net"
	}
	return &Client{
		baseURL:    baseURL,
		sessionID:  cfg.SessionID,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// newRequest builds a request against the tracker's API, attaching the
// session cookie and a recognizable User-Agent. It never sets
// Accept-Encoding, leaving net/http's transparent gzip handling intact
// (§6.3 "transparent gzip").
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracker request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	req.AddCookie(&http.Cookie{Name: "mam_id", Value: c.sessionID})
	return req, nil
}
