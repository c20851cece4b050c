// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// defaultPerPage matches the tracker's own search page size; kept small
// enough that a profile's filter step can usually resolve in one page.
const defaultPerPage = 100

// SearchQuery describes one autograbber search request. Text is the raw
// query string from domain.AutograbberConfig.Query; everything else is
// evaluated client-side by the autograbber's filter step (§4.2 step 2),
// not pushed down to the tracker.
type SearchQuery struct {
	Text    string
	PerPage int
}

type searchResponse struct {
	Data  []rawResult `json:"data"`
	Found int         `json:"found"`
}

// Search returns a lazily-paged Iterator over q's results (§4.2 step 1:
// "each page of results is iterated as a lazy sequence"). No request is
// made until the first call to Next.
func (c *Client) Search(ctx context.Context, q SearchQuery) *Iterator {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &Iterator{client: c, ctx: ctx, query: q, perPage: perPage, page: 1}
}

// Iterator walks a multi-page tracker search one result at a time,
// fetching the next page only once the buffered page is exhausted.
type Iterator struct {
	client  *Client
	ctx     context.Context
	query   SearchQuery
	perPage int

	page int
	buf  []Result
	idx  int
	seen int
	done bool
	err  error
}

// Next returns the next result, or ok=false when the sequence is
// exhausted (err is nil on a clean end, non-nil if a page fetch failed).
func (it *Iterator) Next() (Result, bool, error) {
	for it.idx >= len(it.buf) {
		if it.done {
			return Result{}, false, it.err
		}
		if err := it.fetchPage(); err != nil {
			it.done = true
			it.err = err
			return Result{}, false, err
		}
	}
	r := it.buf[it.idx]
	it.idx++
	return r, true, nil
}

func (it *Iterator) fetchPage() error {
	query := url.Values{}
	query.Set("text", it.query.Text)
	query.Set("perpage", strconv.Itoa(it.perPage))
	query.Set("page", strconv.Itoa(it.page))

	var resp searchResponse
	if err := it.client.doJSON(it.ctx, "/tor/js/loadSearchJSONbasic.php", query, &resp); err != nil {
		return err
	}

	results := make([]Result, 0, len(resp.Data))
	for _, raw := range resp.Data {
		result, err := raw.toResult()
		if err != nil {
			// A single malformed item doesn't invalidate the page
			// (§7: per-item Parse failures are logged, not fatal).
			log.Warn().Err(err).Uint64("mam_id", raw.ID).Msg("skipping unparseable search result")
			continue
		}
		results = append(results, result)
	}

	it.buf = results
	it.idx = 0
	it.seen += len(resp.Data)
	it.page++

	if len(resp.Data) == 0 || it.seen >= resp.Found {
		it.done = true
	}
	return nil
}
