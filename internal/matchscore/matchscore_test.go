// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matchscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, Title("The Fellowship of the Ring", "the fellowship of the ring"))
	assert.Equal(t, 0, Title("", "anything"))
	assert.Greater(t, Title("The Fellowship of the Ring", "Fellowship of the Ring"), 80)
	assert.Less(t, Title("The Fellowship of the Ring", "A Completely Different Book"), 50)
}

func TestBestAuthor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, BestAuthor(nil, []string{"J.R.R. Tolkien"}))
	assert.Equal(t, 100, BestAuthor([]string{"Brandon Sanderson", "J.R.R. Tolkien"}, []string{"J.R.R. Tolkien"}))
	assert.Greater(t, BestAuthor([]string{"J R R Tolkien"}, []string{"J.R.R. Tolkien"}), 80)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, Matches("The Fellowship of the Ring", []string{"J.R.R. Tolkien"}, "the fellowship of the ring", []string{"J.R.R. Tolkien"}))
	assert.False(t, Matches("A Completely Different Book", []string{"Someone Else"}, "the fellowship of the ring", []string{"J.R.R. Tolkien"}))
	assert.False(t, Matches("The Fellowship of the Ring", []string{"Someone Else"}, "the fellowship of the ring", []string{"J.R.R. Tolkien"}))

	// No authors requested: title alone decides.
	assert.True(t, Matches("The Fellowship of the Ring", []string{"Someone Else"}, "the fellowship of the ring", nil))
}
