// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package romanceio implements a metadata.Provider over romance.io: a
// JSON search endpoint followed by an HTML detail-page scrape, grounded
// on original_source/mlm_meta/tests/{romanceio_tests.rs,mock_fetcher.rs}.
// The book detail page's markup itself wasn't present in the retrieval
// pack, so the goquery selectors below follow the conventional
// og:title/og:description/byline pattern most review-site pages share;
// see DESIGN.md for that tradeoff.
package romanceio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/metadata"
	"github.com/stirlingmouse/mlm/pkg/stringutils"
)

const baseURL = "https://www.romance.io"

type bookAuthor struct {
	Name string `json:"name"`
}

type bookSummary struct {
	ID   string `json:"_id"`
	Info struct {
		Title string `json:"title"`
	} `json:"info"`
	Authors []bookAuthor `json:"authors"`
	URL     string       `json:"url"`
}

type searchBooksResponse struct {
	Success bool          `json:"success"`
	Books   []bookSummary `json:"books"`
}

// Provider implements metadata.SearchProvider[bookSummary] over
// romance.io's JSON book search plus an HTML detail fetch for
// description text.
type Provider struct {
	client   metadata.HTTPClient
	minScore float64
}

// New builds a RomanceIo Provider using client for HTTP.
func New(client metadata.HTTPClient) *Provider {
	return &Provider{client: client, minScore: metadata.DefaultMinScore}
}

func (p *Provider) ID() string { return string(domain.MetadataProviderRomanceIo) }

func (p *Provider) MinScore() float64 { return p.minScore }

func (p *Provider) Search(ctx context.Context, q metadata.Query) ([]bookSummary, error) {
	qstr := q.Combined()
	if qstr == "" {
		return nil, nil
	}

	u, err := url.Parse(baseURL + "/json/search_books")
	if err != nil {
		return nil, fmt.Errorf("%w: parse romance.io base url", domain.ErrParse)
	}
	values := u.Query()
	values.Set("query", qstr)
	u.RawQuery = values.Encode()

	log.Debug().Str("url", u.String()).Str("query", qstr).Msg("searching romance.io")

	body, err := p.client.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch romance.io search", domain.ErrNetwork)
	}

	var resp searchBooksResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: parse romance.io search response", domain.ErrParse)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: romance.io search reported failure", domain.ErrParse)
	}

	log.Debug().Int("count", len(resp.Books)).Msg("romance.io search results")
	return resp.Books, nil
}

func (p *Provider) ResultTitle(r bookSummary) string { return r.Info.Title }

func (p *Provider) ResultAuthors(r bookSummary) []string {
	authors := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	return authors
}

func (p *Provider) ResultToMeta(ctx context.Context, r bookSummary) (domain.TorrentMeta, error) {
	authors := make([]string, 0, len(r.Authors))
	for _, a := range p.ResultAuthors(r) {
		authors = append(authors, stringutils.Intern(a))
	}

	tm := domain.TorrentMeta{
		Title:   stringutils.Intern(r.Info.Title),
		Authors: authors,
		IDs:     map[string]string{"romanceio": r.ID},
	}

	if r.URL == "" {
		return tm, nil
	}

	detailURL := baseURL + r.URL
	body, err := p.client.Get(ctx, detailURL)
	if err != nil {
		log.Warn().Err(err).Str("url", detailURL).Msg("failed to fetch romance.io detail page, returning search-only metadata")
		return tm, nil
	}

	desc, err := parseDescription(body)
	if err != nil {
		log.Warn().Err(err).Str("url", detailURL).Msg("failed to parse romance.io detail page")
		return tm, nil
	}
	tm.Description = desc

	return tm, nil
}

// parseDescription extracts the book's description from a romance.io
// detail page, preferring the og:description meta tag and falling back
// to the first paragraph of body text romance.io's book pages render.
func parseDescription(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: parse romance.io detail page", domain.ErrParse)
	}

	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if content = strings.TrimSpace(content); content != "" {
			return content, nil
		}
	}

	desc := strings.TrimSpace(doc.Find(".book-description, .description, article p").First().Text())
	return desc, nil
}

// Fetch implements metadata.Provider, running the search-with-fallback
// algorithm over this provider.
func (p *Provider) Fetch(ctx context.Context, query domain.TorrentMeta) (domain.TorrentMeta, error) {
	return metadata.FetchWithFallback[bookSummary](ctx, p, query.Title, query.Authors)
}
