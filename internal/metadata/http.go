// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metadata implements the pluggable metadata-provider layer
// (§2 component C, §4.5): a search-with-fallback algorithm run against
// whichever providers are registered, each constructed over an HTTP
// capability so tests can supply canned responses (§6.3).
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stirlingmouse/mlm/pkg/httphelpers"
)

// HTTPClient is the capability contract §6.3 describes: get/post
// returning body text, with default browser-like headers and
// transparent gzip handled by the implementation. Grounded on
// original_source/mlm_meta/src/http.rs's HttpClient trait.
type HTTPClient interface {
	Get(ctx context.Context, url string) (string, error)
	Post(ctx context.Context, url string, body *string, headers map[string]string) (string, error)
}

// defaultUserAgent mirrors the original ReqwestClient's browser spoof —
// some providers (RomanceIo in particular) reject the Go stdlib's
// default User-Agent.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// client is the production HTTPClient, built once per provider with its
// own timeout. Grounded on original_source/mlm_meta/src/http.rs's
// ReqwestClient: a fixed set of browser-like default headers, gzip left
// to net/http's transparent default (no Accept-Encoding override).
type client struct {
	httpClient *http.Client
}

// NewHTTPClient builds the default HTTPClient implementation.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *client) newRequest(ctx context.Context, method, url string, body *string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(*body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build metadata provider request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en,en-US;q=0.9")
	return req, nil
}

func (c *client) do(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata provider request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		httphelpers.DrainAndClose(resp)
		return "", fmt.Errorf("metadata provider returned status %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metadata provider response: %w", err)
	}
	return string(data), nil
}

func (c *client) Get(ctx context.Context, url string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *client) Post(ctx context.Context, url string, body *string, headers map[string]string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}
