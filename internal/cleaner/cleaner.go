// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cleaner implements the §2 component J pipeline (§4.4, §9 Open
// Question 1): it never decides a dedup winner itself, it only consumes
// the linker's decision. Any Torrent the linker marked ReplacedWith that
// still has library files on disk gets those files removed and its
// LibraryFiles cleared.
package cleaner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
)

// Pipeline is the singleton cleaner tick function.
type Pipeline struct {
	dctx *daemonctx.Context
}

// New builds the cleaner pipeline.
func New(dctx *daemonctx.Context) *Pipeline {
	return &Pipeline{dctx: dctx}
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	torrents, err := p.dctx.Store.ListAllTorrents(ctx)
	if err != nil {
		return fmt.Errorf("list torrents: %w", err)
	}

	for _, t := range torrents {
		if t.ReplacedWith == nil || len(t.LibraryFiles) == 0 {
			continue
		}

		removed := make([]string, 0, len(t.LibraryFiles))
		var lastErr error
		for _, f := range t.LibraryFiles {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				lastErr = err
				log.Warn().Err(err).Str("file", f).Msg("cleaner: failed to remove library file")
				continue
			}
			removed = append(removed, f)
		}

		if lastErr != nil {
			if upsertErr := p.dctx.Store.UpsertErroredTorrent(ctx, domain.ErroredTorrent{
				ID:        domain.CleanerID(t.ID),
				Title:     t.Meta.Title,
				Error:     lastErr.Error(),
				Meta:      &t.Meta,
				CreatedAt: time.Now().UTC(),
			}); upsertErr != nil {
				log.Warn().Err(upsertErr).Msg("failed to record errored torrent")
			}
			continue
		}

		if _, getErr := p.dctx.Store.GetErroredTorrent(ctx, domain.CleanerID(t.ID)); getErr == nil {
			_ = p.dctx.Store.DeleteErroredTorrent(ctx, domain.CleanerID(t.ID))
		}

		oldLibraryPath := t.LibraryPath
		t.LibraryFiles = nil
		t.LibraryPath = ""
		if err := p.dctx.Store.UpsertTorrent(ctx, t); err != nil {
			return fmt.Errorf("persist cleaned torrent: %w", err)
		}

		if err := p.dctx.Store.InsertEvent(ctx, domain.Event{
			ID:        uuid.NewString(),
			TorrentID: t.ID,
			CreatedAt: time.Now().UTC(),
			Type:      domain.EventTypeCleaned,
			Cleaned:   &domain.EventCleaned{LibraryPath: oldLibraryPath, Files: removed},
		}); err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("failed to emit cleaned event")
		}
	}

	return nil
}
