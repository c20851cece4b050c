// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package listingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func TestListID_NormalizesUserAndShelf(t *testing.T) {
	t.Parallel()

	id, err := listID("https://www.goodreads.com/review/list_rss/12345?shelf=to-read")
	assert.NoError(t, err)
	assert.Equal(t, "12345:to-read", id)
}

func TestListID_NoShelfLeavesEmptySuffix(t *testing.T) {
	t.Parallel()

	id, err := listID("https://www.goodreads.com/review/list_rss/12345")
	assert.NoError(t, err)
	assert.Equal(t, "12345:", id)
}

func TestSplitAuthors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Robin Hobb", "Brandon Sanderson"}, splitAuthors("Robin Hobb, Brandon Sanderson"))
	assert.Nil(t, splitAuthors(""))
}

func TestParseISBN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(9780765326355), parseISBN("978-0-7653-2635-5"))
	assert.Equal(t, uint64(0), parseISBN("not-an-isbn"))
}

func TestAllowsFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, allowsFormat(nil, domain.MainCatAudio))
	assert.True(t, allowsFormat([]string{"audio"}, domain.MainCatAudio))
	assert.False(t, allowsFormat([]string{"ebook"}, domain.MainCatAudio))
}

func TestEqualStrings(t *testing.T) {
	t.Parallel()

	assert.True(t, equalStrings([]string{"a", "b"}, []string{"a", "b"}))
	assert.False(t, equalStrings([]string{"a"}, []string{"a", "b"}))
}

func TestParseRFC1123_FallsBackAcrossLayouts(t *testing.T) {
	t.Parallel()

	tm := parseRFC1123("Mon, 02 Jan 2006 15:04:05 -0700")
	assert.NotNil(t, tm)

	assert.Nil(t, parseRFC1123(""))
	assert.Nil(t, parseRFC1123("not a date"))
}
