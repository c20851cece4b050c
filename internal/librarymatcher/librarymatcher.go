// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package librarymatcher implements the §2 component L pipeline (§4.6):
// periodically cross-reference placed Torrents against an optional
// Audiobookshelf instance by title+author, backfilling abs_id and
// auto-repairing a detected library_mismatch of kind new_path (§9 Open
// Question 2: request_metadata_update is only cleared on a successful
// refresh, never on a failed attempt).
package librarymatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/matchscore"
	"github.com/stirlingmouse/mlm/internal/metadata"
	"github.com/stirlingmouse/mlm/pkg/httphelpers"
)

const maxResponseBytes int64 = 8 << 20

// Pipeline is the singleton library-matcher tick function. Registry is
// the component C provider layer (§4.5), consulted for any Torrent
// flagged request_metadata_update before the Audiobookshelf
// reconciliation pass runs.
type Pipeline struct {
	dctx       *daemonctx.Context
	httpClient *http.Client
	Registry   *metadata.Registry
}

// New builds the library matcher pipeline.
func New(dctx *daemonctx.Context, registry *metadata.Registry) *Pipeline {
	return &Pipeline{dctx: dctx, httpClient: &http.Client{Timeout: 10 * time.Second}, Registry: registry}
}

type absItem struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Media struct {
		Metadata struct {
			Title   string   `json:"title"`
			Authors []string `json:"authors"`
		} `json:"metadata"`
	} `json:"media"`
}

type absSearchResponse struct {
	Results []absItem `json:"results"`
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()
	if cfg.Audiobookshelf == nil || cfg.Audiobookshelf.URL == "" {
		return nil
	}

	torrents, err := p.dctx.Store.ListAllTorrents(ctx)
	if err != nil {
		return fmt.Errorf("list torrents: %w", err)
	}

	for _, t := range torrents {
		if t.RequestMetadataUpdate && p.Registry != nil {
			if err := p.refreshMetadata(ctx, &t); err != nil {
				log.Debug().Err(err).Str("id", t.ID).Msg("library matcher: metadata refresh failed, will retry")
			}
		}

		if t.LibraryPath == "" {
			continue
		}

		if t.AbsID == "" {
			item, ok, err := p.findMatch(ctx, cfg, t.Meta)
			if err != nil {
				log.Warn().Err(err).Str("id", t.ID).Msg("library matcher: search failed")
				continue
			}
			if !ok {
				continue
			}
			t.AbsID = item.ID
			if err := p.dctx.Store.UpsertTorrent(ctx, t); err != nil {
				log.Warn().Err(err).Str("id", t.ID).Msg("library matcher: failed to persist abs_id")
			}
			continue
		}

		if err := p.reconcile(ctx, cfg, &t); err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("library matcher: reconcile failed")
			continue
		}
	}

	return nil
}

// refreshMetadata implements §9 Open Question 2: request_metadata_update
// is cleared only on a successful provider match, so a failed attempt
// (no provider matched, or every provider errored) leaves it set and the
// next tick retries.
func (p *Pipeline) refreshMetadata(ctx context.Context, t *domain.Torrent) error {
	meta, providerID, err := p.Registry.FetchFirstMatch(ctx, t.Meta)
	if err != nil {
		return err
	}
	t.Meta = meta
	t.RequestMetadataUpdate = false
	if err := p.dctx.Store.UpsertTorrent(ctx, *t); err != nil {
		return err
	}
	log.Debug().Str("id", t.ID).Str("provider", providerID).Msg("library matcher: refreshed metadata")
	return nil
}

// reconcile detects drift between a Torrent's recorded library_path and
// what's observed on disk/in Audiobookshelf, auto-repairing a new_path
// mismatch (§4.6 step 3).
func (p *Pipeline) reconcile(ctx context.Context, cfg domain.Config, t *domain.Torrent) error {
	if _, err := os.Stat(t.LibraryPath); err == nil {
		if t.LibraryMismatch != nil {
			t.LibraryMismatch = nil
			t.RequestMetadataUpdate = false
			return p.dctx.Store.UpsertTorrent(ctx, *t)
		}
		return nil
	}

	item, err := p.fetchByID(ctx, cfg, t.AbsID)
	if err != nil {
		return err
	}
	if item == nil {
		t.LibraryMismatch = &domain.LibraryMismatch{Kind: domain.LibraryMismatchTorrentRemoved}
		return p.dctx.Store.UpsertTorrent(ctx, *t)
	}
	if item.Path == "" {
		t.LibraryMismatch = &domain.LibraryMismatch{Kind: domain.LibraryMismatchNoLibrary}
		return p.dctx.Store.UpsertTorrent(ctx, *t)
	}

	t.LibraryPath = item.Path
	t.LibraryMismatch = nil
	t.RequestMetadataUpdate = false
	return p.dctx.Store.UpsertTorrent(ctx, *t)
}

func (p *Pipeline) findMatch(ctx context.Context, cfg domain.Config, meta domain.TorrentMeta) (absItem, bool, error) {
	items, err := p.search(ctx, cfg, meta.Title)
	if err != nil {
		return absItem{}, false, err
	}
	for _, item := range items {
		if matchscore.Matches(item.Media.Metadata.Title, item.Media.Metadata.Authors, meta.Title, meta.Authors) {
			return item, true, nil
		}
	}
	return absItem{}, false, nil
}

func (p *Pipeline) search(ctx context.Context, cfg domain.Config, title string) ([]absItem, error) {
	base := cfg.Audiobookshelf.URL
	u := fmt.Sprintf("%s/api/items?q=%s", base, url.QueryEscape(title))
	var out absSearchResponse
	if err := p.doJSON(ctx, cfg, u, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (p *Pipeline) fetchByID(ctx context.Context, cfg domain.Config, id string) (*absItem, error) {
	u := fmt.Sprintf("%s/api/items/%s", cfg.Audiobookshelf.URL, url.PathEscape(id))
	var item absItem
	if err := p.doJSON(ctx, cfg, u, &item); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (p *Pipeline) doJSON(ctx context.Context, cfg domain.Config, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrConfig, err)
	}
	if cfg.Audiobookshelf.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Audiobookshelf.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: audiobookshelf request failed: %v", domain.ErrNetwork, err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: audiobookshelf item not found", domain.ErrNotFound)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: audiobookshelf returned status %d", domain.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read audiobookshelf response: %v", domain.ErrNetwork, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode audiobookshelf response: %v", domain.ErrParse, err)
	}
	return nil
}
