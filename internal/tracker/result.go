// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/pkg/stringutils"
)

// rawResult is one entry in the tracker's search/detail JSON response.
// author_info/narrator_info/series_info arrive as nested JSON-encoded
// maps (id -> name), matching the upstream API's actual shape per
// mlm_mam/src/meta.rs's clean_meta handling of those fields.
type rawResult struct {
	ID                uint64 `json:"id"`
	Title             string `json:"title"`
	AuthorInfo        string `json:"author_info"`
	NarratorInfo      string `json:"narrator_info"`
	SeriesInfo        string `json:"series_info"`
	Size              string `json:"size"`
	NumFiles          int    `json:"numfiles"`
	MainCategory      string `json:"main_cat"`
	Category          string `json:"category"`
	Filetype          string `json:"filetype"`
	LangCode          string `json:"lang_code"`
	Tags              string `json:"tags"`
	BrowseFlags       uint8  `json:"browseflags"`
	VIP               bool   `json:"vip"`
	Free              bool   `json:"free"`
	PersonalFreeleech bool   `json:"personal_freeleech"`
	Seeders           int    `json:"seeders"`
	Leechers          int    `json:"leechers"`
	Uploader          string `json:"uploader"`
	AddedAt           string `json:"added"`
	DLLink            string `json:"dl"`
	ISBN              string `json:"isbn"`
	Description       string `json:"description,omitempty"`
}

// Result is one search/detail result, normalized into the fields the
// autograbber pipeline needs both for TorrentMeta construction and for
// cost/tie-break decisions that fall outside TorrentMeta itself (§4.2).
type Result struct {
	MamID             uint64
	DLLink            string
	Seeders           int
	Leechers          int
	VIP               bool
	GlobalFreeleech   bool
	PersonalFreeleech bool
	Uploader          string
	UploadedAt        time.Time

	Meta domain.TorrentMeta
}

func decodeNameMap(raw string) []string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	names := make([]string, 0, len(m))
	for _, name := range m {
		if name != "" {
			names = append(names, stringutils.Intern(name))
		}
	}
	return names
}

type rawSeriesEntry struct {
	Name    string `json:"name"`
	Entries string `json:"entries"`
}

func decodeSeriesMap(raw string) []domain.SeriesEntry {
	if raw == "" {
		return nil
	}
	var m map[string]rawSeriesEntry
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	entries := make([]domain.SeriesEntry, 0, len(m))
	for _, e := range m {
		entries = append(entries, domain.SeriesEntry{
			Name:    stringutils.Intern(e.Name),
			Entries: e.Entries,
		})
	}
	return entries
}

// mainCatFromCategory classifies the tracker's free-form category string
// into Audio or Ebook. Categories the tracker groups under "audiobooks"
// map to Audio; everything else defaults to Ebook, matching the
// upstream site's own category taxonomy split.
func mainCatFromCategory(category string) *domain.MainCat {
	lower := strings.ToLower(category)
	var cat domain.MainCat
	switch {
	case strings.Contains(lower, "audio"):
		cat = domain.MainCatAudio
	default:
		cat = domain.MainCatEbook
	}
	return &cat
}

func mediaTypeFromCategory(category string) *domain.MediaType {
	lower := strings.ToLower(category)
	var mt domain.MediaType
	switch {
	case strings.Contains(lower, "audio"):
		mt = domain.MediaTypeAudiobook
	case strings.Contains(lower, "manga"):
		mt = domain.MediaTypeManga
	case strings.Contains(lower, "comic"):
		mt = domain.MediaTypeComics
	case strings.Contains(lower, "periodical") || strings.Contains(lower, "magazine"):
		mt = domain.MediaTypePeriodical
	default:
		mt = domain.MediaTypeEbook
	}
	return &mt
}

// toResult converts a decoded rawResult into a Result, normalizing size,
// flags, and the nested name maps. A malformed size is a per-item parse
// failure (§7 Kind Parse), not fatal to the page.
func (r rawResult) toResult() (Result, error) {
	size, err := domain.ParseSize(r.Size)
	if err != nil {
		return Result{}, fmt.Errorf("result %d: %w", r.ID, err)
	}

	flags := domain.FlagsFromBitfield(r.BrowseFlags)

	ids := map[string]string{"mam": strconv.FormatUint(r.ID, 10)}
	if r.ISBN != "" {
		ids["isbn"] = r.ISBN
	}

	var filetypes []string
	if r.Filetype != "" {
		filetypes = []string{stringutils.Intern(r.Filetype)}
	}

	var tags []string
	if r.Tags != "" {
		for _, t := range strings.Split(r.Tags, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, stringutils.Intern(t))
			}
		}
	}

	category := r.Category
	if category == "" {
		category = r.MainCategory
	}

	meta := domain.TorrentMeta{
		Title:       r.Title,
		Description: r.Description,
		Authors:     decodeNameMap(r.AuthorInfo),
		Narrators:   decodeNameMap(r.NarratorInfo),
		Series:      decodeSeriesMap(r.SeriesInfo),
		Categories:  []string{stringutils.Intern(category)},
		Tags:        tags,
		Filetypes:   filetypes,
		MainCat:     mainCatFromCategory(category),
		Language:    stringutils.InternNormalized(r.LangCode),
		Flags:       &flags,
		MediaType:   mediaTypeFromCategory(category),
		Size:        size,
		NumFiles:    r.NumFiles,
		IDs:         ids,
		Source:      domain.MetadataSourceMam,
	}

	uploadedAt, _ := time.Parse("2006-01-02 15:04:05", r.AddedAt)

	return Result{
		MamID:             r.ID,
		DLLink:            r.DLLink,
		Seeders:           r.Seeders,
		Leechers:          r.Leechers,
		VIP:               r.VIP,
		GlobalFreeleech:   r.Free,
		PersonalFreeleech: r.PersonalFreeleech,
		Uploader:          stringutils.Intern(r.Uploader),
		UploadedAt:        uploadedAt,
		Meta:              meta,
	}, nil
}
