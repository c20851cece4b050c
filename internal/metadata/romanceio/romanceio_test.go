// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package romanceio

import (
	"context"
	"strings"
	"testing"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ofInkSearchJSON = `{
	"success": true,
	"books": [
		{"_id":"68b95a390bc0cee156edaf2b","info":{"title":"Of Ink and Alchemy"},"authors":[{"name":"Sloane St. James"}],"url":"/books/68b95a390bc0cee156edaf2b/of-ink-and-alchemy-sloane-st-james"}
	]
}`

const ofInkDetailHTML = `<html><head>
<meta property="og:title" content="Of Ink and Alchemy">
<meta property="og:description" content="An alchemist falls for the one person she is sworn to deceive.">
</head><body></body></html>`

type fakeHTTPClient struct {
	responses map[string]string
}

func (c *fakeHTTPClient) Get(ctx context.Context, url string) (string, error) {
	for substr, body := range c.responses {
		if strings.Contains(url, substr) {
			return body, nil
		}
	}
	return "", assert.AnError
}

func (c *fakeHTTPClient) Post(ctx context.Context, url string, body *string, headers map[string]string) (string, error) {
	return "", assert.AnError
}

func newFakeClient() *fakeHTTPClient {
	return &fakeHTTPClient{
		responses: map[string]string{
			"/json/search_books": ofInkSearchJSON,
			"/books/":             ofInkDetailHTML,
		},
	}
}

func TestRomanceIoParsesBook(t *testing.T) {
	t.Parallel()

	p := New(newFakeClient())
	m, err := p.Fetch(context.Background(), domain.TorrentMeta{Title: "Of Ink and Alchemy"})
	require.NoError(t, err)
	assert.Contains(t, m.Title, "Of Ink and Alchemy")
	found := false
	for _, a := range m.Authors {
		if strings.Contains(a, "Sloane") {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotEmpty(t, m.Description)
}

func TestRomanceIoMatchesTitleAndAuthor(t *testing.T) {
	t.Parallel()

	p := New(newFakeClient())
	m, err := p.Fetch(context.Background(), domain.TorrentMeta{
		Title:   "Of Ink and Alchemy",
		Authors: []string{"Sloane St. James"},
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(m.Title), "of ink and alchemy")
	found := false
	for _, a := range m.Authors {
		if strings.Contains(strings.ToLower(a), "sloane") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRomanceIoRejectsTitleWithNonMatchingAuthor(t *testing.T) {
	t.Parallel()

	p := New(newFakeClient())
	_, err := p.Fetch(context.Background(), domain.TorrentMeta{
		Title:   "Of Ink and Alchemy",
		Authors: []string{"Some Other Author"},
	})
	assert.Error(t, err, "expected no result for non-matching author")
}

func TestRomanceIoRejectsDifferentTitleSameAuthor(t *testing.T) {
	t.Parallel()

	p := New(newFakeClient())
	_, err := p.Fetch(context.Background(), domain.TorrentMeta{
		Title:   "A Title That Does Not Exist",
		Authors: []string{"Sloane St. James"},
	})
	assert.Error(t, err, "expected no result for different title even if author matches")
}

func TestRomanceIoFindsLateResultInJSONArray(t *testing.T) {
	t.Parallel()

	client := &fakeHTTPClient{
		responses: map[string]string{
			"/json/search_books": `{
				"success": true,
				"books": [
					{"_id":"x1","info":{"title":"Unrelated Book"},"url":"/books/x1/unrelated"},
					{"_id":"x2","info":{"title":"Another Irrelevant"},"url":"/books/x2/irrelevant"},
					{"_id":"68b95a390bc0cee156edaf2b","info":{"title":"Of Ink and Alchemy"},"authors":[{"name":"Sloane St. James"}],"url":"/books/68b95a390bc0cee156edaf2b/of-ink-and-alchemy-sloane-st-james"}
				]
			}`,
			"/books/68b95a390bc0cee156edaf2b": ofInkDetailHTML,
			"/books/x1":                       "<html></html>",
			"/books/x2":                       "<html></html>",
		},
	}

	p := New(client)
	m, err := p.Fetch(context.Background(), domain.TorrentMeta{
		Title:   "Of Ink and Alchemy",
		Authors: []string{"Sloane St. James"},
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(m.Title), "of ink and alchemy")
}
