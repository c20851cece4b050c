// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package linker implements the §2 component I pipelines (§4.4,
// spec.md's `torrent_linker` and `folder_linker`): once a
// SelectedTorrent's download completes, place its best-format file into
// the library directory and decide dedup winners across reuploads of
// the same book. Pipeline drives placement from qBittorrent's own file
// list; FolderPipeline does the same for books dropped straight into
// rip_dir outside qBittorrent's lifecycle. Placement is atomic per file
// (temp name, then rename) and honors domain.Config.LinkMethod. Dedup
// losers are left for internal/cleaner to physically remove (§9 Open
// Question: the linker decides, the cleaner only consumes).
package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/formatrank"
	"github.com/stirlingmouse/mlm/pkg/fsutil"
)

// Pipeline is the singleton torrent-linker tick function.
type Pipeline struct {
	dctx *daemonctx.Context

	// OnLinked is invoked after a torrent is placed into the library,
	// wired by the orchestrator so the library matcher's Trigger fires
	// promptly instead of waiting for its own interval.
	OnLinked func()
}

// New builds the linker pipeline.
func New(dctx *daemonctx.Context) *Pipeline {
	return &Pipeline{dctx: dctx}
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()

	pending, err := p.dctx.Store.ListPendingSelectedTorrents(ctx)
	if err != nil {
		return fmt.Errorf("list pending selected torrents: %w", err)
	}

	for _, sel := range pending {
		if sel.StartedAt == nil || sel.Hash == "" {
			continue
		}
		if _, err := p.dctx.Store.GetTorrent(ctx, sel.Hash); err == nil {
			continue // already placed
		}

		client, err := p.dctx.QBPool.FirstReachable(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("linker: no reachable qbittorrent instance")
			continue
		}

		torrents, err := client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{sel.Hash}})
		if err != nil || len(torrents) == 0 {
			continue
		}
		qt := torrents[0]
		if qt.Progress < 1 {
			continue // still downloading
		}

		files, err := client.GetFilesCtx(ctx, sel.Hash)
		if err != nil || files == nil || len(*files) == 0 {
			log.Warn().Err(err).Str("hash", sel.Hash).Msg("linker: failed to list torrent files")
			continue
		}

		best, ok := selectBestFile(*files, cfg.FormatPreference)
		if !ok {
			continue
		}

		srcPath := filepath.Join(qt.SavePath, best.Name)
		destPath, err := destinationPath(cfg.LibraryDir, sel.Meta, best.Name)
		if err != nil {
			log.Warn().Err(err).Str("hash", sel.Hash).Msg("linker: failed to build destination path")
			continue
		}

		if err := placeFile(srcPath, destPath, cfg.LinkMethod); err != nil {
			if upsertErr := p.dctx.Store.UpsertErroredTorrent(ctx, domain.ErroredTorrent{
				ID:        domain.LinkerID(sel.Hash),
				Title:     sel.Meta.Title,
				Error:     err.Error(),
				Meta:      &sel.Meta,
				CreatedAt: time.Now().UTC(),
			}); upsertErr != nil {
				log.Warn().Err(upsertErr).Msg("failed to record errored torrent")
			}
			continue
		}
		if _, getErr := p.dctx.Store.GetErroredTorrent(ctx, domain.LinkerID(sel.Hash)); getErr == nil {
			_ = p.dctx.Store.DeleteErroredTorrent(ctx, domain.LinkerID(sel.Hash))
		}

		t := domain.Torrent{
			ID:                  sel.Hash,
			Hash:                sel.Hash,
			IDIsHash:            true,
			LibraryPath:         destPath,
			LibraryFiles:        []string{destPath},
			TitleSearch:         sel.TitleSearch,
			Meta:                sel.Meta,
			Category:            sel.Category,
			CreatedAt:           time.Now().UTC(),
		}
		if sel.Meta.MainCat != nil {
			switch *sel.Meta.MainCat {
			case domain.MainCatAudio:
				t.SelectedAudioFormat = filepath.Ext(best.Name)
			case domain.MainCatEbook:
				t.SelectedEbookFormat = filepath.Ext(best.Name)
			}
		}

		if err := p.resolveDedup(ctx, cfg, &t); err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("linker: dedup resolution failed")
		}

		if err := p.dctx.Store.UpsertTorrent(ctx, t); err != nil {
			return fmt.Errorf("persist linked torrent: %w", err)
		}

		if err := p.dctx.Store.InsertEvent(ctx, domain.Event{
			ID:        uuid.NewString(),
			TorrentID: t.ID,
			CreatedAt: time.Now().UTC(),
			Type:      domain.EventTypeLinked,
			Linked:    &domain.EventLinked{LibraryPath: destPath},
		}); err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("failed to emit linked event")
		}

		if p.OnLinked != nil {
			p.OnLinked()
		}
	}

	return nil
}

// FolderPipeline is the singleton folder-linker tick function
// (spec.md's `folder_linker`, §4.1): link books dropped directly into
// domain.Config.RipDir's top level outside qBittorrent's own torrent
// lifecycle (manual rips, out-of-band deliveries), matched to a pending
// SelectedTorrent by title. It shares Pipeline's placement and dedup
// helpers; the only difference is where the source file list comes
// from (a local directory listing instead of a torrent's file list).
type FolderPipeline struct {
	dctx *daemonctx.Context

	// OnLinked fires the same library-matcher wake Pipeline.OnLinked does.
	OnLinked func()
}

// NewFolderPipeline builds the folder-linker pipeline.
func NewFolderPipeline(dctx *daemonctx.Context) *FolderPipeline {
	return &FolderPipeline{dctx: dctx}
}

// Tick implements pipeline.RunFunc.
func (p *FolderPipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()
	if cfg.RipDir == "" {
		return nil
	}

	entries, err := os.ReadDir(cfg.RipDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read rip dir: %v", domain.ErrIO, err)
	}

	pending, err := p.dctx.Store.ListPendingSelectedTorrents(ctx)
	if err != nil {
		return fmt.Errorf("list pending selected torrents: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := p.linkFolder(ctx, cfg, pending, filepath.Join(cfg.RipDir, entry.Name()), entry.Name()); err != nil {
			log.Warn().Err(err).Str("dir", entry.Name()).Msg("folder linker: failed to link directory")
		}
	}

	return nil
}

func (p *FolderPipeline) linkFolder(ctx context.Context, cfg domain.Config, pending []domain.SelectedTorrent, dirPath, dirName string) error {
	titleSearch := domain.TitleSearch(dirName)
	sel, ok := findPendingByTitle(pending, titleSearch)
	if !ok {
		return nil
	}
	if sel.Hash != "" {
		if _, err := p.dctx.Store.GetTorrent(ctx, sel.Hash); err == nil {
			return nil // already placed by the torrent linker
		}
	}

	names, err := localFileNames(dirPath)
	if err != nil {
		return err
	}
	best, ok := selectBestLocalFile(names, cfg.FormatPreference)
	if !ok {
		return nil
	}

	destPath, err := destinationPath(cfg.LibraryDir, sel.Meta, best)
	if err != nil {
		return err
	}

	if err := placeFile(filepath.Join(dirPath, best), destPath, cfg.LinkMethod); err != nil {
		return err
	}

	id := sel.Hash
	if id == "" {
		id = "folder:" + titleSearch
	}

	t := domain.Torrent{
		ID:           id,
		Hash:         sel.Hash,
		IDIsHash:     sel.Hash != "",
		LibraryPath:  destPath,
		LibraryFiles: []string{destPath},
		TitleSearch:  sel.TitleSearch,
		Meta:         sel.Meta,
		Category:     sel.Category,
		CreatedAt:    time.Now().UTC(),
	}
	if sel.Meta.MainCat != nil {
		switch *sel.Meta.MainCat {
		case domain.MainCatAudio:
			t.SelectedAudioFormat = filepath.Ext(best)
		case domain.MainCatEbook:
			t.SelectedEbookFormat = filepath.Ext(best)
		}
	}

	if err := resolveDedup(ctx, p.dctx, cfg, &t); err != nil {
		log.Warn().Err(err).Str("id", t.ID).Msg("folder linker: dedup resolution failed")
	}

	if err := p.dctx.Store.UpsertTorrent(ctx, t); err != nil {
		return fmt.Errorf("persist linked folder: %w", err)
	}

	if err := p.dctx.Store.InsertEvent(ctx, domain.Event{
		ID:        uuid.NewString(),
		TorrentID: t.ID,
		CreatedAt: time.Now().UTC(),
		Type:      domain.EventTypeLinked,
		Linked:    &domain.EventLinked{LibraryPath: destPath},
	}); err != nil {
		log.Warn().Err(err).Str("id", t.ID).Msg("failed to emit linked event")
	}

	if p.OnLinked != nil {
		p.OnLinked()
	}
	return nil
}

func findPendingByTitle(pending []domain.SelectedTorrent, titleSearch string) (domain.SelectedTorrent, bool) {
	for _, sel := range pending {
		if sel.TitleSearch == titleSearch {
			return sel, true
		}
	}
	return domain.SelectedTorrent{}, false
}

func localFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory: %v", domain.ErrIO, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// selectBestLocalFile is selectBestFile's counterpart for a plain
// directory listing instead of a qbt.TorrentFiles slice.
func selectBestLocalFile(names []string, preference []string) (string, bool) {
	var best string
	bestIdx := len(preference) + 1
	found := false
	for _, name := range names {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		idx := len(preference)
		for i, pref := range preference {
			if strings.EqualFold(ext, pref) {
				idx = i
				break
			}
		}
		if !found || idx < bestIdx {
			best, bestIdx, found = name, idx, true
		}
	}
	return best, found
}

// selectBestFile picks the file whose extension ranks best in
// preference among a torrent's content files (§4.4 step 2: format
// selection when a release bundles more than one format/file).
func selectBestFile(files qbt.TorrentFiles, preference []string) (qbt.TorrentFile, bool) {
	var best qbt.TorrentFile
	bestIdx := len(preference) + 1
	found := false
	for _, f := range files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
		idx := len(preference)
		for i, pref := range preference {
			if strings.EqualFold(ext, pref) {
				idx = i
				break
			}
		}
		if !found || idx < bestIdx || (idx == bestIdx && f.Size > best.Size) {
			best, bestIdx, found = f, idx, true
		}
	}
	return best, found
}

// destinationPath builds the library placement path: libraryDir/author/title.ext,
// each segment sanitized for filesystem safety.
func destinationPath(libraryDir string, meta domain.TorrentMeta, sourceName string) (string, error) {
	if libraryDir == "" {
		return "", fmt.Errorf("%w: libraryDir is not configured", domain.ErrConfig)
	}
	author := "Unknown"
	if len(meta.Authors) > 0 {
		author = meta.Authors[0]
	}
	return filepath.Join(libraryDir, sanitizeSegment(author), sanitizeSegment(meta.Title)+filepath.Ext(sourceName)), nil
}

var pathReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "'", "<", "-", ">", "-", "|", "-")

func sanitizeSegment(s string) string {
	s = pathReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "Unknown"
	}
	return s
}

// placeFile atomically places src at dest using method, writing to a
// temp name in dest's directory first so a crash mid-placement never
// leaves a partial file at the final path.
func placeFile(src, dest string, method domain.LinkMethod) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: create library dir: %v", domain.ErrIO, err)
	}

	tmp := dest + ".mlm-tmp-" + uuid.NewString()
	defer os.Remove(tmp)

	switch method {
	case domain.LinkMethodSymlink:
		if err := os.Symlink(src, tmp); err != nil {
			return fmt.Errorf("%w: symlink: %v", domain.ErrIO, err)
		}
	case domain.LinkMethodCopy:
		if err := copyFile(src, tmp); err != nil {
			return err
		}
	default:
		if same, err := fsutil.SameFilesystem(src, filepath.Dir(dest)); err != nil || !same {
			if err := copyFile(src, tmp); err != nil {
				return err
			}
		} else if err := os.Link(src, tmp); err != nil {
			return fmt.Errorf("%w: hardlink: %v", domain.ErrIO, err)
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("%w: rename into place: %v", domain.ErrIO, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", domain.ErrIO, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create temp dest: %v", domain.ErrIO, err)
	}
	defer out.Close()

	buf := make([]byte, 1<<20)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: write dest: %v", domain.ErrIO, werr)
			}
		}
		if rerr != nil {
			break
		}
	}
	return nil
}

// resolveDedup implements §4.4's dedup decision: t is compared pairwise
// with every placed, not-yet-replaced sibling sharing its title_search
// that TorrentsMatch accepts. A sibling that t is preferred over is
// marked ReplacedWith t.ID so the cleaner can remove its now-superseded
// library files; a sibling preferred over t marks t ReplacedWith that
// sibling's ID instead.
func (p *Pipeline) resolveDedup(ctx context.Context, cfg domain.Config, t *domain.Torrent) error {
	return resolveDedup(ctx, p.dctx, cfg, t)
}

// resolveDedup is the free-function form shared by Pipeline and
// FolderPipeline (both place files and must resolve dedup the same way).
func resolveDedup(ctx context.Context, dctx *daemonctx.Context, cfg domain.Config, t *domain.Torrent) error {
	siblings, err := dctx.Store.FindTorrentsByTitleSearch(ctx, t.TitleSearch)
	if err != nil {
		return err
	}

	winner := formatrank.Candidate{Meta: t.Meta, UploadedAt: t.CreatedAt}
	for _, s := range siblings {
		if s.ID == t.ID || s.LibraryPath == "" || s.ReplacedWith != nil {
			continue
		}
		if !domain.TorrentsMatch(s.Meta, t.Meta, s.TitleSearch, t.TitleSearch) {
			continue
		}
		candidate := formatrank.Candidate{Meta: s.Meta, UploadedAt: s.CreatedAt}
		if formatrank.Preferred(winner, candidate, cfg.FormatPreference) {
			replaced := s
			replaced.ReplacedWith = &domain.ReplacedWith{ID: t.ID, At: time.Now().UTC()}
			if err := dctx.Store.UpsertTorrent(ctx, replaced); err != nil {
				return err
			}
		} else {
			t.ReplacedWith = &domain.ReplacedWith{ID: s.ID, At: time.Now().UTC()}
		}
	}
	return nil
}
