// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/tracker"
)

func TestBuildRunners_OneRunnerPerConfiguredInstance(t *testing.T) {
	t.Parallel()

	cfg := domain.Config{
		Autograbbers: []domain.AutograbberConfig{
			{Name: "fantasy", IntervalSecs: 60},
			{Name: "romance", IntervalSecs: 120},
		},
		GoodreadsLists: []domain.GoodreadsListConfig{
			{Name: "fantasy", SearchIntervalSecs: 300},
			{Name: "unmatched-list", SearchIntervalSecs: 300},
		},
	}

	dctx := daemonctx.New(cfg, nil, nil)
	trackerClient := tracker.NewClient(tracker.Config{})
	registry := buildMetadataRegistry(nil)

	runners := buildRunners(dctx, trackerClient, registry, cfg)

	// 5 singletons + 2 autograbbers + 2 list ingesters.
	require.Len(t, runners, 9)

	names := make(map[string]bool, len(runners))
	for _, r := range runners {
		names[r.Name] = true
	}
	for _, want := range []string{
		"downloader", "torrent_linker", "folder_linker", "cleaner", "library_matcher",
		"autograbber:fantasy", "autograbber:romance",
		"list_ingester:fantasy", "list_ingester:unmatched-list",
	} {
		assert.True(t, names[want], "missing runner %q", want)
	}
}

// TestBuildRunners_WakeRulesFireDownstreamTriggers exercises the actual
// OnX hooks buildPipelines wires (not just each Trigger's own Fire/C
// round trip) to confirm downloader.OnDownloaded, torrentLinker.OnLinked
// and folderLinker.OnLinked really do reach the runners §4.1 names as
// their downstream.
func TestBuildRunners_WakeRulesFireDownstreamTriggers(t *testing.T) {
	t.Parallel()

	cfg := domain.Config{
		Autograbbers: []domain.AutograbberConfig{{Name: "fantasy", IntervalSecs: 60}},
	}
	dctx := daemonctx.New(cfg, nil, nil)
	registry := buildMetadataRegistry(nil)
	built := buildPipelines(dctx, tracker.NewClient(tracker.Config{}), registry, cfg)

	byName := make(map[string]int)
	for i, r := range built.runners {
		byName[r.Name] = i
	}
	torrentLinkerTrigger := built.runners[byName["torrent_linker"]].Trigger
	libMatcherTrigger := built.runners[byName["library_matcher"]].Trigger

	require.NotNil(t, built.downloader.OnDownloaded, "downloader.OnDownloaded should be wired")
	built.downloader.OnDownloaded()
	select {
	case <-torrentLinkerTrigger.C():
	case <-time.After(time.Second):
		t.Fatal("expected OnDownloaded to fire the torrent_linker trigger")
	}

	require.NotNil(t, built.torrentLinker.OnLinked, "torrentLinker.OnLinked should be wired")
	built.torrentLinker.OnLinked()
	select {
	case <-libMatcherTrigger.C():
	case <-time.After(time.Second):
		t.Fatal("expected torrent_linker's OnLinked to fire the library_matcher trigger")
	}

	require.NotNil(t, built.folderLinker.OnLinked, "folderLinker.OnLinked should be wired")
	built.folderLinker.OnLinked()
	select {
	case <-libMatcherTrigger.C():
	case <-time.After(time.Second):
		t.Fatal("expected folder_linker's OnLinked to fire the library_matcher trigger")
	}
}
