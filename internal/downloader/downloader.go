// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package downloader implements the credit-gated dispatch pipeline (§2
// component H, §4.3): drain SelectedTorrents in FIFO order, admit them
// against a single per-tick credit snapshot, and hand admitted torrents
// to the qBittorrent pool.
package downloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/expr-lang/expr"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/bencode"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/tracker"
	"github.com/stirlingmouse/mlm/pkg/hashutil"
)

// Pipeline is the singleton downloader tick function (§4.1: one
// downloader instance for the whole daemon, unlike the per-profile
// autograbber).
type Pipeline struct {
	dctx    *daemonctx.Context
	tracker *tracker.Client

	// OnDownloaded is invoked after a torrent is successfully added,
	// wired by the daemon's orchestrator to fire the linker's
	// pipeline.Trigger (§4.1's downloader -> torrent_linker wake rule).
	OnDownloaded func()
}

// New builds the downloader pipeline.
func New(dctx *daemonctx.Context, trackerClient *tracker.Client) *Pipeline {
	return &Pipeline{dctx: dctx, tracker: trackerClient}
}

// tagEnv is the expr-lang/expr evaluation environment for
// domain.TagProfileConfig.Filter, matching the grabber filter's
// grounding in the expr-lang/expr dependency (§4.2/§4.3 both use the
// same compiled-filter idiom for different config surfaces).
type tagEnv struct {
	Title      string
	Authors    []string
	Categories []string
	Tags       []string
	Filetypes  []string
	MainCat    string
	MediaType  string
}

func envFor(meta domain.TorrentMeta) tagEnv {
	var mainCat, mediaType string
	if meta.MainCat != nil {
		mainCat = string(*meta.MainCat)
	}
	if meta.MediaType != nil {
		mediaType = string(*meta.MediaType)
	}
	return tagEnv{
		Title:      meta.Title,
		Authors:    meta.Authors,
		Categories: meta.Categories,
		Tags:       meta.Tags,
		Filetypes:  meta.Filetypes,
		MainCat:    mainCat,
		MediaType:  mediaType,
	}
}

// tagProfileFor returns the first configured tag profile whose filter
// matches meta, or ok=false if none do. It does not look at any
// category or tags the selection already carries.
func tagProfileFor(profiles []domain.TagProfileConfig, meta domain.TorrentMeta) (domain.TagProfileConfig, bool) {
	for _, p := range profiles {
		if p.Filter == "" {
			return p, true
		}
		program, err := expr.Compile(p.Filter, expr.Env(tagEnv{}), expr.AsBool())
		if err != nil {
			log.Warn().Err(err).Str("tag_profile", p.Name).Msg("failed to compile tag profile filter")
			continue
		}
		out, err := expr.Run(program, envFor(meta))
		if err != nil {
			continue
		}
		if match, _ := out.(bool); match {
			return p, true
		}
	}
	return domain.TagProfileConfig{}, false
}

// creditSnapshot is the single per-tick read of tracker credit state
// (§4.3 step 1: "read once at the top of the tick; every admission
// decision this tick is against this one snapshot, not a fresh read").
type creditSnapshot struct {
	unsatHeadroom uint64
	wedges        uint64
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()

	info, err := p.tracker.UserInfo(ctx)
	if err != nil {
		return fmt.Errorf("read tracker user info: %w", err)
	}

	snapshot := creditSnapshot{
		unsatHeadroom: saturatingSub(info.UnsatLimit, info.UnsatCount),
		wedges:        info.Wedges,
	}

	pending, err := p.dctx.Store.ListPendingSelectedTorrents(ctx)
	if err != nil {
		return fmt.Errorf("list pending selected torrents: %w", err)
	}

	for _, sel := range pending {
		if sel.StartedAt != nil {
			continue
		}

		cost := domain.TorrentCostRatio
		if sel.Cost != nil {
			cost = *sel.Cost
		}

		unsatBuffer := cfg.UnsatBuffer
		if sel.UnsatBuffer != nil {
			unsatBuffer = *sel.UnsatBuffer
		}
		wedgeBuffer := cfg.WedgeBuffer
		if sel.WedgeBuffer != nil {
			wedgeBuffer = *sel.WedgeBuffer
		}

		useWedge, admit := admission(&snapshot, cost, unsatBuffer, wedgeBuffer)
		if !admit {
			continue
		}

		if err := p.dispatch(ctx, cfg, sel, useWedge); err != nil {
			log.Warn().Err(err).Uint64("mam_id", sel.MamID).Msg("downloader dispatch failed")
		}
	}

	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// admission applies §4.3 step 3's per-cost rule against the tick's
// shared snapshot, decrementing the relevant counter on admission so
// later items in the same tick see the reduced headroom.
func admission(snapshot *creditSnapshot, cost domain.TorrentCost, unsatBuffer, wedgeBuffer uint64) (useWedge, admit bool) {
	switch cost {
	case domain.TorrentCostVIP, domain.TorrentCostPersonalFreeleech, domain.TorrentCostGlobalFreeleech:
		return false, true
	case domain.TorrentCostUseWedge:
		if snapshot.wedges > wedgeBuffer {
			snapshot.wedges--
			return true, true
		}
		return false, false
	case domain.TorrentCostTryWedge:
		if snapshot.wedges > wedgeBuffer {
			snapshot.wedges--
			return true, true
		}
		fallthrough
	default:
		if snapshot.unsatHeadroom > unsatBuffer {
			snapshot.unsatHeadroom--
			return false, true
		}
		return false, false
	}
}

// dispatch downloads the .torrent file, hands it to the qBittorrent
// pool, and persists the result. Retries the whole operation once
// (§4.3 step 5) before recording an ErroredTorrent.
func (p *Pipeline) dispatch(ctx context.Context, cfg domain.Config, sel domain.SelectedTorrent, usedWedge bool) error {
	var hash string

	err := retry.Do(func() error {
		buf, err := p.tracker.Download(ctx, sel.DLLink)
		if err != nil {
			return fmt.Errorf("download torrent file: %w", err)
		}

		h, err := infoHash(buf)
		if err != nil {
			return fmt.Errorf("compute info hash: %w", err)
		}

		client, err := p.dctx.QBPool.FirstReachable(ctx)
		if err != nil {
			return err
		}

		category, tags := sel.Category, sel.Tags
		if category == "" {
			if profile, ok := tagProfileFor(cfg.Tags, sel.Meta); ok {
				category = profile.Category
				if len(tags) == 0 {
					tags = profile.Tags
				}
			}
		}

		if err := p.dctx.QBPool.EnsureCategory(ctx, client, category); err != nil {
			return err
		}

		options := map[string]string{}
		if category != "" {
			options["category"] = category
		}
		if len(tags) > 0 {
			options["tags"] = strings.Join(tags, ",")
		}

		if err := client.AddTorrentFromMemoryCtx(ctx, buf, options); err != nil {
			return fmt.Errorf("%w: add torrent: %v", domain.ErrNetwork, err)
		}

		hash = hashutil.Normalize(h)
		return nil
	}, retry.Attempts(2), retry.Context(ctx))

	errID := domain.GrabberID(sel.MamID)
	if err != nil {
		if upsertErr := p.dctx.Store.UpsertErroredTorrent(ctx, domain.ErroredTorrent{
			ID:        errID,
			Title:     sel.Meta.Title,
			Error:     err.Error(),
			Meta:      &sel.Meta,
			CreatedAt: time.Now().UTC(),
		}); upsertErr != nil {
			log.Warn().Err(upsertErr).Msg("failed to record errored torrent")
		}
		return err
	}

	if _, getErr := p.dctx.Store.GetErroredTorrent(ctx, errID); getErr == nil {
		_ = p.dctx.Store.DeleteErroredTorrent(ctx, errID)
	}

	now := time.Now().UTC()
	sel.StartedAt = &now
	sel.Hash = hash
	if err := p.dctx.Store.UpsertSelectedTorrent(ctx, sel); err != nil {
		return fmt.Errorf("persist started selected torrent: %w", err)
	}

	_ = usedWedge
	if p.OnDownloaded != nil {
		p.OnDownloaded()
	}
	return nil
}

// infoHash computes a torrent file's canonical SHA1 info-hash directly
// from its bencoded bytes. AddTorrentFromMemoryCtx doesn't return the
// resulting hash, and the teacher's own hash-deriving code
// (internal/clientmigrate) depends on anacrolix/torrent/metainfo, which
// SPEC_FULL.md explicitly drops -- so this decodes just far enough
// (top-level dict -> raw "info" value) to re-hash it with zeebo/bencode,
// already a direct dependency.
func infoHash(torrentBytes []byte) (string, error) {
	var raw map[string]bencode.RawMessage
	if err := bencode.DecodeBytes(torrentBytes, &raw); err != nil {
		return "", err
	}
	info, ok := raw["info"]
	if !ok {
		return "", fmt.Errorf("torrent file has no info dict")
	}
	sum := sha1.Sum(info)
	return hex.EncodeToString(sum[:]), nil
}
