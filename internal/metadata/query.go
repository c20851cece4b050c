// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import "strings"

// Query is what's sent to a provider's Search: a title and an optional
// single author string, grounded on
// original_source/mlm_meta's SearchQuery (title, author: Option<String>).
type Query struct {
	Title  string
	Author string
}

// Combined joins title and author into one free-text query string, the
// form most JSON-search-API providers (including Open Library) expect.
func (q Query) Combined() string {
	if q.Author == "" {
		return strings.TrimSpace(q.Title)
	}
	return strings.TrimSpace(q.Title + " " + q.Author)
}

// queryWithAuthor builds q1 (§4.5 step 2): title plus the first author,
// when any authors are given.
func queryWithAuthor(title string, authors []string) Query {
	q := Query{Title: title}
	if len(authors) > 0 {
		q.Author = authors[0]
	}
	return q
}

// queryTitleOnly builds q2 (§4.5 step 2): title alone.
func queryTitleOnly(title string) Query {
	return Query{Title: title}
}
