// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"fmt"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// DefaultMinScore is the minimum acceptance score a provider uses unless
// it overrides MinScore (§4.5: "a minimum acceptance score (default 0.5)").
const DefaultMinScore = 0.5

// Provider is the registry-facing interface every metadata provider
// satisfies: a stable id and a single fetch operation taking a query
// TorrentMeta and producing a result TorrentMeta, or failing NoMatch /
// InvalidQuery. Grounded on
// original_source/mlm_meta/src/traits.rs's Provider trait.
type Provider interface {
	ID() string
	Fetch(ctx context.Context, query domain.TorrentMeta) (domain.TorrentMeta, error)
}

// ErrInvalidQuery is returned when the query TorrentMeta has no title to
// search on (§4.5 step 1).
var ErrInvalidQuery = fmt.Errorf("%w: query title is empty", domain.ErrParse)

// ErrNoMatch is returned when no search result scored above the
// provider's threshold (§4.5 step 5).
var ErrNoMatch = fmt.Errorf("%w: no result above score threshold", domain.ErrNotFound)

// SearchProvider is the capability a concrete provider (OpenLibrary,
// RomanceIo) implements: search producing a lazy-enough slice of opaque
// result items, plus the title/author/meta extraction FetchWithFallback
// needs to score and convert a result. Grounded on
// original_source/mlm_meta/src/providers/mod.rs's MetadataProvider trait,
// translated from Rust's associated-type trait to a Go generic interface.
type SearchProvider[T any] interface {
	ID() string
	MinScore() float64
	Search(ctx context.Context, q Query) ([]T, error)
	ResultTitle(r T) string
	ResultAuthors(r T) []string
	ResultToMeta(ctx context.Context, r T) (domain.TorrentMeta, error)
}

// selectBest returns the index and score of the highest-scoring result
// against scoringQuery, or ok=false if nothing scored at or above
// threshold.
func selectBest[T any](p SearchProvider[T], results []T, scoringQuery Query) (idx int, score float64, ok bool) {
	best := -1.0
	bestIdx := -1
	for i, r := range results {
		s := scoreCandidate(p.ResultTitle(r), p.ResultAuthors(r), scoringQuery.Title, authorSlice(scoringQuery.Author))
		if s > best {
			best = s
			bestIdx = i
		}
	}
	if bestIdx < 0 || best < p.MinScore() {
		return 0, 0, false
	}
	return bestIdx, best, true
}

func authorSlice(author string) []string {
	if author == "" {
		return nil
	}
	return []string{author}
}

// FetchWithFallback implements §4.5's search-with-fallback algorithm:
// try a title+author query first when authors are known, scoring against
// the same query; if nothing clears the threshold (or no authors were
// given), fall back to a title-only search scored against the *original*
// query (still including authors, per step 4). Grounded on
// original_source/mlm_meta/src/providers/mod.rs's search_with_fallback.
func FetchWithFallback[T any](ctx context.Context, p SearchProvider[T], title string, authors []string) (domain.TorrentMeta, error) {
	if title == "" {
		return domain.TorrentMeta{}, ErrInvalidQuery
	}

	withAuthor := queryWithAuthor(title, authors)
	titleOnly := queryTitleOnly(title)

	if withAuthor.Author != "" {
		if results, err := p.Search(ctx, withAuthor); err == nil && len(results) > 0 {
			if idx, _, ok := selectBest(p, results, withAuthor); ok {
				return p.ResultToMeta(ctx, results[idx])
			}
		}
	}

	if results, err := p.Search(ctx, titleOnly); err == nil && len(results) > 0 {
		// Scored against withAuthor, not titleOnly: step 4 keeps
		// authors in the scoring query even on a title-only search.
		if idx, _, ok := selectBest(p, results, withAuthor); ok {
			return p.ResultToMeta(ctx, results[idx])
		}
	}

	return domain.TorrentMeta{}, ErrNoMatch
}
