// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package listingest implements the §2 component K pipeline (§4.7): pull
// one configured external reading list (a Goodreads shelf RSS export),
// normalize its list id, and materialize List/ListItem rows for the
// autograbber's fuzzy goodreads_id backfill to match against.
package listingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/daemonctx"
	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/pkg/httphelpers"
)

// maxFeedBytes caps a single list feed fetch, matching the tracker
// client's own defensive cap against a misbehaving endpoint.
const maxFeedBytes int64 = 8 << 20

// Pipeline is one configured reading list's tick function, one instance
// per domain.GoodreadsListConfig (§4.1's "list_ingester[i] per list
// source" topology).
type Pipeline struct {
	dctx       *daemonctx.Context
	httpClient *http.Client
	ListName   string

	// OnIngested is invoked after new/updated items are recorded,
	// wired by the orchestrator to fire the matching autograbber
	// profile's Trigger (§4.1's list_ingester[i] -> autograbber[i]
	// wake rule).
	OnIngested func()
}

// New builds a Pipeline for the named list.
func New(dctx *daemonctx.Context, listName string) *Pipeline {
	return &Pipeline{dctx: dctx, httpClient: &http.Client{Timeout: 10 * time.Second}, ListName: listName}
}

type goodreadsRSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title   string `xml:"title"`
		PubDate string `xml:"pubDate"`
		Items   []struct {
			GUID        string `xml:"guid"`
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			AuthorName  string `xml:"author_name"`
			BookImage   string `xml:"book_image_url"`
			BookID      string `xml:"book_id"`
			ISBN        string `xml:"isbn"`
			UserShelves string `xml:"user_shelves"`
		} `xml:"item"`
	} `xml:"channel"`
}

// listID implements §4.7's id normalization: "{user_id}:{shelf|''}",
// derived from the configured feed URL's own query parameters (a
// Goodreads shelf RSS export is always of the form
// .../list_rss/{user_id}?shelf={shelf}).
func listID(feedURL string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse list url: %v", domain.ErrConfig, err)
	}
	userID := ""
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 {
		userID = segments[len(segments)-1]
	}
	shelf := u.Query().Get("shelf")
	return fmt.Sprintf("%s:%s", userID, shelf), nil
}

// Tick implements pipeline.RunFunc.
func (p *Pipeline) Tick(ctx context.Context) error {
	cfg := p.dctx.Config()
	profile, ok := findList(cfg.GoodreadsLists, p.ListName)
	if !ok {
		log.Debug().Str("list", p.ListName).Msg("list ingester profile no longer configured, skipping tick")
		return nil
	}

	id, err := listID(profile.URL)
	if err != nil {
		return err
	}

	feed, err := p.fetch(ctx, profile.URL)
	if err != nil {
		return fmt.Errorf("fetch list %q: %w", profile.Name, err)
	}

	buildDate := parseRFC1123(feed.Channel.PubDate)
	list := domain.List{ID: id, Title: feed.Channel.Title, URL: profile.URL, BuildDate: buildDate}
	now := time.Now().UTC()
	list.UpdatedAt = &now
	if err := p.dctx.Store.UpsertList(ctx, list); err != nil {
		return fmt.Errorf("upsert list %q: %w", profile.Name, err)
	}

	ingestedAny := false
	for _, item := range feed.Channel.Items {
		guid := item.GUID
		if guid == "" {
			guid = item.BookID
		}
		if guid == "" {
			continue
		}

		existing, err := p.dctx.Store.GetListItem(ctx, id, guid)
		alreadyKnown := err == nil

		li := domain.ListItem{
			GUID:       guid,
			ListID:     id,
			Title:      item.Title,
			Authors:    splitAuthors(item.AuthorName),
			CoverURL:   item.BookImage,
			BookURL:    item.Link,
			ISBN:       parseISBN(item.ISBN),
			AllowAudio: allowsFormat(profile.Grab, domain.MainCatAudio),
			AllowEbook: allowsFormat(profile.Grab, domain.MainCatEbook),
			CreatedAt:  now,
		}
		if profile.PreferFormat != nil {
			li.PreferFormat = profile.PreferFormat
		}
		if alreadyKnown {
			li.CreatedAt = existing.CreatedAt
			li.AudioTorrent = existing.AudioTorrent
			li.EbookTorrent = existing.EbookTorrent
			li.MarkedDoneAt = existing.MarkedDoneAt
			if existing.Title == li.Title && equalStrings(existing.Authors, li.Authors) {
				continue
			}
		}

		if err := p.dctx.Store.UpsertListItem(ctx, li); err != nil {
			log.Warn().Err(err).Str("guid", guid).Str("list", profile.Name).Msg("failed to upsert list item")
			continue
		}
		ingestedAny = true
	}

	if ingestedAny && p.OnIngested != nil {
		p.OnIngested()
	}
	return nil
}

func findList(lists []domain.GoodreadsListConfig, name string) (domain.GoodreadsListConfig, bool) {
	for _, l := range lists {
		if l.Name == name {
			return l, true
		}
	}
	return domain.GoodreadsListConfig{}, false
}

func (p *Pipeline) fetch(ctx context.Context, feedURL string) (*goodreadsRSS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrConfig, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request list feed: %v", domain.ErrNetwork, err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: list feed returned status %d", domain.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read list feed body: %v", domain.ErrNetwork, err)
	}
	if int64(len(body)) > maxFeedBytes {
		return nil, fmt.Errorf("%w: list feed exceeded %d bytes", domain.ErrNetwork, maxFeedBytes)
	}

	var feed goodreadsRSS
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: parse list feed xml: %v", domain.ErrParse, err)
	}
	return &feed, nil
}

func splitAuthors(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseISBN(raw string) uint64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "-", ""))
	n, _ := strconv.ParseUint(raw, 10, 64)
	return n
}

func allowsFormat(grab []string, cat domain.MainCat) bool {
	if len(grab) == 0 {
		return true
	}
	for _, g := range grab {
		if strings.EqualFold(g, string(cat)) {
			return true
		}
	}
	return false
}

func parseRFC1123(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
