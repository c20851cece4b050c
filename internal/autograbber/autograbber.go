// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package autograbber implements the per-profile search -> filter ->
// classify -> select pipeline (§2 component G, §4.2). One Pipeline is
// constructed per configured domain.AutograbberConfig; the daemon
// schedules one pipeline.Runner per instance, matching §4.1's
// "autograbber[i] per search profile" topology.
package autograbber

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/formatrank"
	"github.com/stirlingmouse/mlm/internal/matchscore"
	"github.com/stirlingmouse/mlm/internal/tracker"
)

// FilterEnv is the expr-lang/expr evaluation environment for a search
// profile's free-form filter string (§4.2 step 2, config.autograbbers[].filter),
// grounded on the teacher's own go.mod choice of expr-lang/expr to compile
// automation condition rules once and evaluate them per candidate. The
// retrieval pack names this dependency without a visible call site (its
// usage lives inside the autobrr/autobrr package the teacher depends on,
// not in the wrapper source); the shape below follows the library's own
// documented expr.Compile + expr.Run API (see DESIGN.md).
type FilterEnv struct {
	Title             string
	Authors           []string
	Narrators         []string
	Categories        []string
	Tags              []string
	Filetypes         []string
	Language          string
	MainCat           string
	MediaType         string
	Edition           string
	Uploader          string
	SizeBytes         uint64
	NumFiles          int
	Seeders           int
	Leechers          int
	VIP               bool
	GlobalFreeleech   bool
	PersonalFreeleech bool
}

func envFor(r tracker.Result) FilterEnv {
	var mainCat, mediaType string
	if r.Meta.MainCat != nil {
		mainCat = string(*r.Meta.MainCat)
	}
	if r.Meta.MediaType != nil {
		mediaType = string(*r.Meta.MediaType)
	}
	return FilterEnv{
		Title:             r.Meta.Title,
		Authors:           r.Meta.Authors,
		Narrators:         r.Meta.Narrators,
		Categories:        r.Meta.Categories,
		Tags:              r.Meta.Tags,
		Filetypes:         r.Meta.Filetypes,
		Language:          r.Meta.Language,
		MainCat:           mainCat,
		MediaType:         mediaType,
		Edition:           r.Meta.Edition,
		Uploader:          r.Uploader,
		SizeBytes:         uint64(r.Meta.Size),
		NumFiles:          r.Meta.NumFiles,
		Seeders:           r.Seeders,
		Leechers:          r.Leechers,
		VIP:               r.VIP,
		GlobalFreeleech:   r.GlobalFreeleech,
		PersonalFreeleech: r.PersonalFreeleech,
	}
}

// Pipeline is one search profile's tick function. ProfileName is
// re-resolved against the live config snapshot on every tick so a
// hot-reloaded edit (or removal) of the profile takes effect without
// restarting the pipeline's Runner.
type Pipeline struct {
	dctx        *daemonctx.Context
	tracker     *tracker.Client
	ProfileName string

	// OnSelect is invoked after a new SelectedTorrent is recorded,
	// wired by the daemon's orchestrator to fire the downloader's
	// pipeline.Trigger (§4.1's autograbber -> downloader wake rule).
	OnSelect func()

	mu           sync.Mutex
	compiledExpr string
	program      *vm.Program
}

// New builds a Pipeline for the named search profile.
func New(dctx *daemonctx.Context, trackerClient *tracker.Client, profileName string) *Pipeline {
	return &Pipeline{dctx: dctx, tracker: trackerClient, ProfileName: profileName}
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()
	profile, ok := findProfile(cfg.Autograbbers, p.ProfileName)
	if !ok {
		log.Debug().Str("profile", p.ProfileName).Msg("autograbber profile no longer configured, skipping tick")
		return nil
	}

	program, err := p.filterProgram(profile.Filter)
	if err != nil {
		return fmt.Errorf("%w: compile filter for profile %q: %v", domain.ErrConfig, profile.Name, err)
	}

	type selection struct {
		result tracker.Result
		cost   domain.TorrentCost
	}
	bestByTitle := make(map[string]selection)

	it := p.tracker.Search(ctx, tracker.SearchQuery{Text: profile.Query})
	for {
		result, ok, err := it.Next()
		if !ok {
			if err != nil {
				return fmt.Errorf("search profile %q: %w", profile.Name, err)
			}
			break
		}

		if program != nil {
			pass, err := evalFilter(program, envFor(result))
			if err != nil {
				log.Warn().Err(err).Uint64("mam_id", result.MamID).Str("profile", profile.Name).Msg("filter evaluation failed, skipping candidate")
				continue
			}
			if !pass {
				continue
			}
		}

		handled, takeAsNew, err := p.classifyKnown(ctx, profile, cfg.FormatPreference, result)
		if err != nil {
			log.Warn().Err(err).Uint64("mam_id", result.MamID).Str("profile", profile.Name).Msg("failed to classify candidate")
			continue
		}
		if handled && !takeAsNew {
			continue
		}

		cost := costFor(profile, result)
		titleSearch := domain.TitleSearch(result.Meta.Title)

		if existing, ok := bestByTitle[titleSearch]; ok {
			if !tieBreakPrefers(result, existing.result) {
				continue
			}
		}
		bestByTitle[titleSearch] = selection{result: result, cost: cost}
	}

	for _, sel := range bestByTitle {
		if err := p.selectCandidate(ctx, profile, sel.result, sel.cost); err != nil {
			log.Warn().Err(err).Uint64("mam_id", sel.result.MamID).Str("profile", profile.Name).Msg("failed to record selection")
		}
	}

	return nil
}

func findProfile(profiles []domain.AutograbberConfig, name string) (domain.AutograbberConfig, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return domain.AutograbberConfig{}, false
}

func (p *Pipeline) filterProgram(filter string) (*vm.Program, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if filter == "" {
		return nil, nil
	}
	if filter == p.compiledExpr && p.program != nil {
		return p.program, nil
	}
	program, err := expr.Compile(filter, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	p.compiledExpr = filter
	p.program = program
	return program, nil
}

func evalFilter(program *vm.Program, env FilterEnv) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	pass, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not evaluate to bool")
	}
	return pass, nil
}

// costFor determines admission cost by the §4.2 step 3 precedence: a
// free-to-grab flag on the item itself always overrides whatever cost
// the profile was configured with (S1: a Ratio-configured profile still
// selects a freeleech item at GlobalFreeleech cost).
func costFor(profile domain.AutograbberConfig, r tracker.Result) domain.TorrentCost {
	switch {
	case r.VIP:
		return domain.TorrentCostVIP
	case r.PersonalFreeleech:
		return domain.TorrentCostPersonalFreeleech
	case r.GlobalFreeleech:
		return domain.TorrentCostGlobalFreeleech
	case profile.Cost != "":
		return profile.Cost
	default:
		return domain.TorrentCostRatio
	}
}

// tieBreakPrefers reports whether candidate is preferred over existing
// within the same tick's duplicate group (§4.2 edge cases): larger size,
// then richer metadata, then earlier created_at. Since both are observed
// in the same tick, the "created_at" leg is decided by keeping whichever
// was seen first (existing wins on an exact tie).
func tieBreakPrefers(candidate, existing tracker.Result) bool {
	if candidate.Meta.Size != existing.Meta.Size {
		return candidate.Meta.Size > existing.Meta.Size
	}
	if rc, re := richness(candidate.Meta), richness(existing.Meta); rc != re {
		return rc > re
	}
	return false
}

func richness(m domain.TorrentMeta) int {
	n := 0
	if m.Description != "" {
		n++
	}
	if m.Edition != "" {
		n++
	}
	if len(m.Narrators) > 0 {
		n++
	}
	if len(m.Series) > 0 {
		n++
	}
	if len(m.Tags) > 0 {
		n++
	}
	if m.Language != "" {
		n++
	}
	if m.MainCat != nil {
		n++
	}
	if m.MediaType != nil {
		n++
	}
	if len(m.IDs) > 1 {
		n++
	}
	return n
}

// classifyKnown handles §4.2 step 3's first three classification
// branches (already a Torrent, already Selected, duplicate of an
// existing Torrent). handled reports whether the candidate has been
// fully dealt with; takeAsNew reports that, despite being handled as a
// duplicate comparison, the candidate is strictly preferable and should
// still proceed through selection.
func (p *Pipeline) classifyKnown(ctx context.Context, profile domain.AutograbberConfig, formatPreference []string, r tracker.Result) (handled, takeAsNew bool, err error) {
	mamIDStr := strconv.FormatUint(r.MamID, 10)
	titleSearch := domain.TitleSearch(r.Meta.Title)

	existingTorrents, err := p.dctx.Store.FindTorrentsByTitleSearch(ctx, titleSearch)
	if err != nil {
		return false, false, err
	}

	for _, t := range existingTorrents {
		if t.Meta.IDs["mam"] == mamIDStr {
			if !metaEqual(t.Meta, r.Meta) {
				updated := t
				updated.Meta = r.Meta
				updated.RequestMetadataUpdate = false
				if err := p.dctx.Store.UpsertTorrent(ctx, updated); err != nil {
					return false, false, err
				}
				if err := p.dctx.Store.InsertEvent(ctx, domain.Event{
					ID:        uuid.NewString(),
					TorrentID: t.ID,
					MamID:     r.MamID,
					CreatedAt: time.Now().UTC(),
					Type:      domain.EventTypeUpdated,
					Updated: &domain.EventUpdated{
						Fields:         []domain.FieldChange{{Field: "meta.title", FromText: t.Meta.Title, ToText: r.Meta.Title}},
						Source:         domain.MetadataSourceMam,
						SourceProvider: profile.Name,
					},
				}); err != nil {
					log.Warn().Err(err).Str("id", t.ID).Msg("failed to emit updated event")
				}
			}
			return true, false, nil
		}
	}

	if _, err := p.dctx.Store.GetSelectedTorrent(ctx, r.MamID); err == nil {
		return true, false, nil
	}

	for _, t := range existingTorrents {
		if !domain.TorrentsMatch(t.Meta, r.Meta, t.TitleSearch, titleSearch) {
			continue
		}
		if formatrank.Preferred(
			formatrank.Candidate{Meta: r.Meta, UploadedAt: r.UploadedAt},
			formatrank.Candidate{Meta: t.Meta, UploadedAt: t.CreatedAt},
			formatPreference,
		) {
			return true, true, nil
		}
		dup := domain.DuplicateTorrent{
			MamID:       r.MamID,
			DLLink:      r.DLLink,
			TitleSearch: titleSearch,
			Meta:        r.Meta,
			CreatedAt:   time.Now().UTC(),
			DuplicateOf: t.ID,
		}
		return true, false, p.dctx.Store.UpsertDuplicateTorrent(ctx, dup)
	}

	return false, false, nil
}

func metaEqual(a, b domain.TorrentMeta) bool {
	return a.Title == b.Title && a.Description == b.Description && a.Edition == b.Edition
}

// selectCandidate implements §4.2 step 3's final branch and step 4
// (emit events): record a SelectedTorrent and a Grabbed event, matching
// it against any pending reading-list item by fuzzy title+author (§4.7).
func (p *Pipeline) selectCandidate(ctx context.Context, profile domain.AutograbberConfig, r tracker.Result, cost domain.TorrentCost) error {
	titleSearch := domain.TitleSearch(r.Meta.Title)

	if profile.DryRun {
		log.Info().Uint64("mam_id", r.MamID).Str("profile", profile.Name).Str("cost", string(cost)).Msg("dry run: would select candidate")
		return nil
	}

	goodreadsID := p.matchListItem(ctx, r.Meta)

	sel := domain.SelectedTorrent{
		MamID:       r.MamID,
		DLLink:      r.DLLink,
		Cost:        &cost,
		UnsatBuffer: profile.UnsatBuffer,
		WedgeBuffer: profile.WedgeBuffer,
		TitleSearch: titleSearch,
		Meta:        r.Meta,
		Grabber:     profile.Name,
		GoodreadsID: goodreadsID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := p.dctx.Store.UpsertSelectedTorrent(ctx, sel); err != nil {
		return err
	}

	wedged := cost == domain.TorrentCostUseWedge || cost == domain.TorrentCostTryWedge
	if err := p.dctx.Store.InsertEvent(ctx, domain.Event{
		ID:        uuid.NewString(),
		MamID:     r.MamID,
		CreatedAt: time.Now().UTC(),
		Type:      domain.EventTypeGrabbed,
		Grabbed:   &domain.EventGrabbed{Grabber: profile.Name, Cost: &cost, Wedged: wedged},
	}); err != nil {
		return fmt.Errorf("emit grabbed event: %w", err)
	}

	if p.OnSelect != nil {
		p.OnSelect()
	}
	return nil
}

// matchListItem implements §4.7's fuzzy goodreads_id backfill: if any
// pending ListItem's title+authors fuzzy-match this candidate above the
// matchscore thresholds, its GUID is returned for the new selection.
func (p *Pipeline) matchListItem(ctx context.Context, meta domain.TorrentMeta) string {
	lists, err := p.dctx.Store.ListLists(ctx)
	if err != nil {
		return ""
	}
	for _, l := range lists {
		items, err := p.dctx.Store.ListItemsByList(ctx, l.ID)
		if err != nil {
			continue
		}
		for _, item := range items {
			if item.MarkedDoneAt != nil {
				continue
			}
			if matchscore.Matches(meta.Title, meta.Authors, item.Title, item.Authors) {
				return item.GUID
			}
		}
	}
	return ""
}
