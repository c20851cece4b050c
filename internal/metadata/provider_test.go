// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"testing"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoc struct {
	title   string
	authors []string
}

type fakeSearchProvider struct {
	withAuthorResults []fakeDoc
	titleOnlyResults  []fakeDoc
	minScore          float64
}

func (p *fakeSearchProvider) ID() string { return "fake" }

func (p *fakeSearchProvider) MinScore() float64 {
	if p.minScore == 0 {
		return DefaultMinScore
	}
	return p.minScore
}

func (p *fakeSearchProvider) Search(ctx context.Context, q Query) ([]fakeDoc, error) {
	if q.Author != "" {
		return p.withAuthorResults, nil
	}
	return p.titleOnlyResults, nil
}

func (p *fakeSearchProvider) ResultTitle(r fakeDoc) string { return r.title }

func (p *fakeSearchProvider) ResultAuthors(r fakeDoc) []string { return r.authors }

func (p *fakeSearchProvider) ResultToMeta(ctx context.Context, r fakeDoc) (domain.TorrentMeta, error) {
	return domain.TorrentMeta{Title: r.title, Authors: r.authors}, nil
}

func TestFetchWithFallbackEmptyTitle(t *testing.T) {
	t.Parallel()

	p := &fakeSearchProvider{}
	_, err := FetchWithFallback[fakeDoc](context.Background(), p, "", []string{"A"})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestFetchWithFallbackMatchesOnFirstSearch(t *testing.T) {
	t.Parallel()

	p := &fakeSearchProvider{
		withAuthorResults: []fakeDoc{{title: "Dune", authors: []string{"Frank Herbert"}}},
	}
	meta, err := FetchWithFallback[fakeDoc](context.Background(), p, "Dune", []string{"Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", meta.Title)
}

func TestFetchWithFallbackFallsBackToTitleOnly(t *testing.T) {
	t.Parallel()

	p := &fakeSearchProvider{
		// author query returns nothing close enough
		withAuthorResults: []fakeDoc{{title: "Unrelated Book", authors: []string{"Someone Else"}}},
		// title-only query turns up the right book, scored against the
		// original (with-author) query per step 4.
		titleOnlyResults: []fakeDoc{{title: "Dune", authors: []string{"Frank Herbert"}}},
	}
	meta, err := FetchWithFallback[fakeDoc](context.Background(), p, "Dune", []string{"Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", meta.Title)
}

func TestFetchWithFallbackNoMatch(t *testing.T) {
	t.Parallel()

	p := &fakeSearchProvider{
		withAuthorResults: []fakeDoc{{title: "Nothing Like It", authors: []string{"Nobody"}}},
		titleOnlyResults:  []fakeDoc{{title: "Also Nothing Like It", authors: []string{"Nobody"}}},
	}
	_, err := FetchWithFallback[fakeDoc](context.Background(), p, "Dune", []string{"Frank Herbert"})
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestFetchWithFallbackNoAuthorsSkipsWithAuthorSearch(t *testing.T) {
	t.Parallel()

	p := &fakeSearchProvider{
		titleOnlyResults: []fakeDoc{{title: "Dune"}},
	}
	meta, err := FetchWithFallback[fakeDoc](context.Background(), p, "Dune", nil)
	require.NoError(t, err)
	assert.Equal(t, "Dune", meta.Title)
}

func TestFakeProviderReturnsNoMatchWhenMetaNil(t *testing.T) {
	t.Parallel()

	p := NewFakeProvider("fake", nil)
	_, err := p.Fetch(context.Background(), domain.TorrentMeta{})
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestFakeProviderReturnsConfiguredMeta(t *testing.T) {
	t.Parallel()

	want := domain.TorrentMeta{Title: "Dune"}
	p := NewFakeProvider("fake", &want)
	got, err := p.Fetch(context.Background(), domain.TorrentMeta{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegistryFetchFirstMatch(t *testing.T) {
	t.Parallel()

	miss := domain.TorrentMeta{}
	hit := domain.TorrentMeta{Title: "Dune"}

	r := NewRegistry()
	r.Register(NewFakeProvider("a", nil))
	r.Register(NewFakeProvider("b", &hit))
	r.Register(NewFakeProvider("c", &miss))

	meta, id, err := r.FetchFirstMatch(context.Background(), domain.TorrentMeta{Title: "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "b", id)
	assert.Equal(t, "Dune", meta.Title)
}

func TestRegistryFetchFirstMatchAllMiss(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewFakeProvider("a", nil))
	r.Register(NewFakeProvider("b", nil))

	_, _, err := r.FetchFirstMatch(context.Background(), domain.TorrentMeta{Title: "Dune"})
	require.ErrorIs(t, err, ErrNoMatch)
}
