// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package openlibrary implements a metadata.Provider over Open
// Library's public search API, grounded on
// original_source/mlm_meta/src/providers/openlibrary.rs.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/metadata"
	"github.com/stirlingmouse/mlm/pkg/stringutils"
)

const baseURL = "https://openlibrary.org"

// doc is the subset of an Open Library search.json "docs" entry we
// care about; unknown fields are ignored by encoding/json.
type doc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int64    `json:"first_publish_year"`
	EditionCount     int64    `json:"edition_count"`
	Subject          []string `json:"subject"`
	ISBN             []string `json:"isbn"`
}

type searchResponse struct {
	Docs []doc `json:"docs"`
}

// Provider implements metadata.SearchProvider[doc] over Open Library's
// /search.json endpoint.
type Provider struct {
	client   metadata.HTTPClient
	minScore float64
}

// New builds an Open Library Provider using client for HTTP.
func New(client metadata.HTTPClient) *Provider {
	return &Provider{client: client, minScore: metadata.DefaultMinScore}
}

func (p *Provider) ID() string { return string(domain.MetadataProviderOpenLibrary) }

func (p *Provider) MinScore() float64 { return p.minScore }

func (p *Provider) Search(ctx context.Context, q metadata.Query) ([]doc, error) {
	qstr := q.Combined()
	if qstr == "" {
		return nil, nil
	}

	u, err := url.Parse(baseURL + "/search.json")
	if err != nil {
		return nil, fmt.Errorf("%w: parse openlibrary base url", domain.ErrParse)
	}
	values := u.Query()
	values.Set("q", qstr)
	u.RawQuery = values.Encode()

	log.Debug().Str("url", u.String()).Str("query", qstr).Msg("searching Open Library")

	body, err := p.client.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch openlibrary search", domain.ErrNetwork)
	}

	var resp searchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: parse openlibrary search response", domain.ErrParse)
	}

	log.Debug().Int("count", len(resp.Docs)).Msg("Open Library search results")
	return resp.Docs, nil
}

func (p *Provider) ResultTitle(r doc) string { return r.Title }

func (p *Provider) ResultAuthors(r doc) []string { return r.AuthorName }

func (p *Provider) ResultToMeta(ctx context.Context, r doc) (domain.TorrentMeta, error) {
	authors := make([]string, 0, len(r.AuthorName))
	for _, a := range r.AuthorName {
		authors = append(authors, stringutils.Intern(a))
	}

	var description strings.Builder
	if r.FirstPublishYear != 0 {
		fmt.Fprintf(&description, "First published: %d\n", r.FirstPublishYear)
	}
	if r.EditionCount != 0 {
		fmt.Fprintf(&description, "%d editions\n", r.EditionCount)
	}

	tags := make([]string, 0, len(r.Subject))
	for _, s := range r.Subject {
		if len(s) <= 2 || len(s) >= 50 {
			continue
		}
		if len(tags) >= 20 {
			break
		}
		tags = append(tags, stringutils.InternNormalized(s))
	}

	tm := domain.TorrentMeta{
		Title:       stringutils.Intern(r.Title),
		Description: description.String(),
		Authors:     authors,
		Tags:        tags,
	}

	if len(r.ISBN) > 0 {
		tm.IDs = map[string]string{"isbn": r.ISBN[0]}
	}

	log.Debug().
		Str("title", tm.Title).
		Strs("authors", tm.Authors).
		Int("tags_count", len(tm.Tags)).
		Msg("returning Open Library metadata")
	return tm, nil
}

// Fetch implements metadata.Provider, running the search-with-fallback
// algorithm over this provider.
func (p *Provider) Fetch(ctx context.Context, query domain.TorrentMeta) (domain.TorrentMeta, error) {
	return metadata.FetchWithFallback[doc](ctx, p, query.Title, query.Authors)
}
