// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package autograbber

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/tracker"
)

func TestCostFor_FreeOverridesConfiguredRatio(t *testing.T) {
	t.Parallel()

	profile := domain.AutograbberConfig{Cost: domain.TorrentCostRatio}
	r := tracker.Result{GlobalFreeleech: true}

	assert.Equal(t, domain.TorrentCostGlobalFreeleech, costFor(profile, r))
}

func TestCostFor_PrecedenceOrder(t *testing.T) {
	t.Parallel()

	profile := domain.AutograbberConfig{Cost: domain.TorrentCostUseWedge}

	assert.Equal(t, domain.TorrentCostVIP, costFor(profile, tracker.Result{VIP: true, GlobalFreeleech: true}))
	assert.Equal(t, domain.TorrentCostPersonalFreeleech, costFor(profile, tracker.Result{PersonalFreeleech: true, GlobalFreeleech: true}))
	assert.Equal(t, domain.TorrentCostUseWedge, costFor(profile, tracker.Result{}))
}

func TestCostFor_DefaultsToRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.TorrentCostRatio, costFor(domain.AutograbberConfig{}, tracker.Result{}))
}

func TestTieBreakPrefers_LargerSizeWins(t *testing.T) {
	t.Parallel()

	bigger := tracker.Result{Meta: domain.TorrentMeta{Size: 200}}
	smaller := tracker.Result{Meta: domain.TorrentMeta{Size: 100}}

	assert.True(t, tieBreakPrefers(bigger, smaller))
	assert.False(t, tieBreakPrefers(smaller, bigger))
}

func TestTieBreakPrefers_RicherMetadataWinsOnSizeTie(t *testing.T) {
	t.Parallel()

	rich := tracker.Result{Meta: domain.TorrentMeta{Size: 100, Description: "has a description", Edition: "2nd"}}
	plain := tracker.Result{Meta: domain.TorrentMeta{Size: 100}}

	assert.True(t, tieBreakPrefers(rich, plain))
	assert.False(t, tieBreakPrefers(plain, rich))
}

func TestTieBreakPrefers_ExactTieKeepsExisting(t *testing.T) {
	t.Parallel()

	a := tracker.Result{Meta: domain.TorrentMeta{Size: 100}}
	b := tracker.Result{Meta: domain.TorrentMeta{Size: 100}}

	assert.False(t, tieBreakPrefers(a, b))
}

func TestFindProfile(t *testing.T) {
	t.Parallel()

	profiles := []domain.AutograbberConfig{{Name: "fantasy"}, {Name: "scifi"}}

	p, ok := findProfile(profiles, "scifi")
	assert.True(t, ok)
	assert.Equal(t, "scifi", p.Name)

	_, ok = findProfile(profiles, "horror")
	assert.False(t, ok)
}

func TestFilterProgram_EmptyFilterPassesEverything(t *testing.T) {
	t.Parallel()

	p := &Pipeline{}
	program, err := p.filterProgram("")
	assert.NoError(t, err)
	assert.Nil(t, program)
}

func TestFilterProgram_CompilesAndCaches(t *testing.T) {
	t.Parallel()

	p := &Pipeline{}
	program, err := p.filterProgram(`len(Authors) > 0 && Seeders >= 1`)
	assert.NoError(t, err)
	assert.NotNil(t, program)

	pass, err := evalFilter(program, FilterEnv{Authors: []string{"Robin Hobb"}, Seeders: 3})
	assert.NoError(t, err)
	assert.True(t, pass)

	pass, err = evalFilter(program, FilterEnv{Seeders: 3})
	assert.NoError(t, err)
	assert.False(t, pass)

	again, err := p.filterProgram(`len(Authors) > 0 && Seeders >= 1`)
	assert.NoError(t, err)
	assert.Same(t, program, again)
}

func TestFilterProgram_InvalidExpressionErrors(t *testing.T) {
	t.Parallel()

	p := &Pipeline{}
	_, err := p.filterProgram(`this is not valid expr`)
	assert.Error(t, err)
}

func TestRichness_CountsOptionalFields(t *testing.T) {
	t.Parallel()

	bare := domain.TorrentMeta{}
	mainCat := domain.MainCatAudio
	full := domain.TorrentMeta{
		Description: "x",
		Edition:     "2nd",
		Narrators:   []string{"a"},
		Series:      []domain.SeriesEntry{{Name: "s"}},
		Tags:        []string{"t"},
		Language:    "en",
		MainCat:     &mainCat,
		IDs:         map[string]string{"mam": "1", "isbn": "2"},
	}

	assert.Equal(t, 0, richness(bare))
	assert.Equal(t, 8, richness(full))
}
