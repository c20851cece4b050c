// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/pkg/httphelpers"
)

// maxResponseBytes caps any single tracker JSON response; well above any
// legitimate search page or user-info payload, it only guards against a
// misbehaving endpoint streaming an unbounded body.
const maxResponseBytes int64 = 8 << 20

// doJSON issues a GET against path with query and decodes the JSON body
// into out. Non-2xx statuses and transport failures are classified per
// §7's error taxonomy so callers can errors.Is against domain.ErrNetwork,
// domain.ErrTimeout, or domain.ErrNotFound.
func (c *Client) doJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: tracker request to %s timed out", domain.ErrTimeout, path)
		}
		return fmt.Errorf("%w: tracker request to %s failed: %v", domain.ErrNetwork, path, err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: tracker returned 404 for %s", domain.ErrNotFound, path)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: tracker returned status %d for %s", domain.ErrNetwork, resp.StatusCode, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read tracker response: %v", domain.ErrNetwork, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return fmt.Errorf("%w: tracker response exceeded %d bytes", domain.ErrNetwork, maxResponseBytes)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode tracker response from %s: %v", domain.ErrParse, path, err)
	}
	return nil
}
