// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityExactMatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, similarity("Project Hail Mary", "project hail mary"))
}

func TestSimilarityEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, similarity("", "anything"))
	assert.Equal(t, 0.0, similarity("anything", ""))
}

func TestSimilarityPartialMatch(t *testing.T) {
	t.Parallel()

	s := similarity("Project Hail Mary", "Project Hail Marry")
	assert.Greater(t, s, 0.8)
	assert.Less(t, s, 1.0)
}

func TestScoreCandidateTitleOnlyWhenNoAuthors(t *testing.T) {
	t.Parallel()

	score := scoreCandidate("Dune", nil, "Dune", []string{"Frank Herbert"})
	assert.Equal(t, similarity("Dune", "Dune"), score)
}

func TestScoreCandidateWeightsAuthorAndTitleEqually(t *testing.T) {
	t.Parallel()

	score := scoreCandidate("Dune", []string{"Frank Herbert"}, "Dune", []string{"Frank Herbert"})
	assert.Equal(t, 1.0, score)

	partial := scoreCandidate("Dune", []string{"F. Herbert"}, "Dune", []string{"Frank Herbert"})
	assert.Less(t, partial, 1.0)
	assert.Greater(t, partial, 0.5)
}

func TestBestAuthorSimilarityPicksHighest(t *testing.T) {
	t.Parallel()

	s := bestAuthorSimilarity([]string{"Someone Else", "Frank Herbert"}, []string{"Frank Herbert"})
	assert.Equal(t, 1.0, s)
}
