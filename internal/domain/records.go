// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// MainCat is a book's primary format category.
type MainCat string

const (
	MainCatAudio MainCat = "audio"
	MainCatEbook MainCat = "ebook"
)

// MediaType further classifies a release beyond its MainCat.
type MediaType string

const (
	MediaTypeAudiobook MediaType = "audiobook"
	MediaTypeEbook     MediaType = "ebook"
	MediaTypeManga     MediaType = "manga"
	MediaTypeComics    MediaType = "comics"
	MediaTypePeriodical MediaType = "periodical"
)

// MetadataSource records provenance of the last change to a TorrentMeta.
type MetadataSource string

const (
	MetadataSourceMam    MetadataSource = "mam"
	MetadataSourceManual MetadataSource = "manual"
	MetadataSourceFile   MetadataSource = "file"
	MetadataSourceMatch  MetadataSource = "match"
)

// SeriesEntry is one (series name, position) pair. Entries is a
// free-form string ("1", "1-3", "prequel") rather than a number because
// sources disagree on format.
type SeriesEntry struct {
	Name    string `json:"name"`
	Entries string `json:"entries"`
}

// TorrentMeta is a normalized description of a book torrent, merged from
// whichever sources have contributed to it so far.
type TorrentMeta struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Edition     string        `json:"edition,omitempty"`
	Authors     []string      `json:"authors,omitempty"`
	Narrators   []string      `json:"narrators,omitempty"`
	Series      []SeriesEntry `json:"series,omitempty"`
	Categories  []string      `json:"categories,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Filetypes   []string      `json:"filetypes,omitempty"`

	MainCat   *MainCat   `json:"main_cat,omitempty"`
	Language  string     `json:"language,omitempty"`
	Flags     *Flags     `json:"flags,omitempty"`
	MediaType *MediaType `json:"media_type,omitempty"`

	Size     Size              `json:"size"`
	NumFiles int               `json:"num_files"`
	IDs      map[string]string `json:"ids,omitempty"`

	Source MetadataSource `json:"source,omitempty"`
}

// LibraryMismatchKind tags why a Torrent's library placement no longer
// matches what the linker last recorded.
type LibraryMismatchKind string

const (
	LibraryMismatchNewPath       LibraryMismatchKind = "new_path"
	LibraryMismatchNoLibrary     LibraryMismatchKind = "no_library"
	LibraryMismatchTorrentRemoved LibraryMismatchKind = "torrent_removed"
)

// LibraryMismatch describes a detected drift between a Torrent's recorded
// library_path and what the library matcher observes on disk.
type LibraryMismatch struct {
	Kind LibraryMismatchKind `json:"kind"`
	// NewPath is populated only when Kind == LibraryMismatchNewPath.
	NewPath string `json:"new_path,omitempty"`
}

// ReplacedWith records that a Torrent was superseded by another, and when.
type ReplacedWith struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

// Torrent is a known item: something the daemon has seen grabbed,
// downloaded, or linked at least once.
type Torrent struct {
	ID   string `json:"id"`
	Hash string `json:"hash,omitempty"`
	// IDIsHash reports whether ID is a content hash (true) or a
	// site-assigned identifier (false).
	IDIsHash bool `json:"id_is_hash"`

	LibraryPath         string   `json:"library_path,omitempty"`
	LibraryFiles        []string `json:"library_files,omitempty"`
	SelectedAudioFormat string   `json:"selected_audio_format,omitempty"`
	SelectedEbookFormat string   `json:"selected_ebook_format,omitempty"`

	TitleSearch string      `json:"title_search"`
	Meta        TorrentMeta `json:"meta"`

	ReplacedWith           *ReplacedWith    `json:"replaced_with,omitempty"`
	RequestMetadataUpdate  bool             `json:"request_metadata_update"`
	LibraryMismatch        *LibraryMismatch `json:"library_mismatch,omitempty"`
	Linker                 string           `json:"linker,omitempty"`
	Category               string           `json:"category,omitempty"`
	AbsID                  string           `json:"abs_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TorrentCost is the mechanism by which a SelectedTorrent was admitted
// past the ratio/buffer gate (§4.3.1).
type TorrentCost string

const (
	TorrentCostVIP               TorrentCost = "vip"
	TorrentCostPersonalFreeleech TorrentCost = "personal_freeleech"
	TorrentCostGlobalFreeleech   TorrentCost = "global_freeleech"
	// TorrentCostUseWedge requires a wedge to be available; admission
	// fails if none remain.
	TorrentCostUseWedge TorrentCost = "use_wedge"
	// TorrentCostTryWedge prefers a wedge but falls back to TorrentCostRatio
	// admission when wedges are depleted (§4.3 step 3).
	TorrentCostTryWedge TorrentCost = "try_wedge"
	TorrentCostRatio    TorrentCost = "ratio"
)

// SelectedTorrent is a torrent the autograbber has chosen and queued for
// the downloader to pick up.
type SelectedTorrent struct {
	MamID  uint64 `json:"mam_id"`
	DLLink string `json:"dl_link"`
	Cost   *TorrentCost `json:"cost,omitempty"`

	UnsatBuffer  *uint64  `json:"unsat_buffer,omitempty"`
	WedgeBuffer  *uint64  `json:"wedge_buffer,omitempty"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	TitleSearch string      `json:"title_search"`
	Meta        TorrentMeta `json:"meta"`

	Grabber     string     `json:"grabber,omitempty"`
	GoodreadsID string     `json:"goodreads_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
	Hash        string     `json:"hash,omitempty"`
}

// DuplicateTorrent is a candidate the autograbber observed but did not
// select because it matched an existing Torrent or SelectedTorrent.
type DuplicateTorrent struct {
	MamID uint64 `json:"mam_id"`

	DLLink      string      `json:"dl_link,omitempty"`
	TitleSearch string      `json:"title_search"`
	Meta        TorrentMeta `json:"meta"`

	CreatedAt   time.Time `json:"created_at"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
}

// ErroredTorrentStage tags which pipeline stage produced an ErroredTorrent.
type ErroredTorrentStage string

const (
	ErroredTorrentStageGrabber ErroredTorrentStage = "grabber"
	ErroredTorrentStageLinker  ErroredTorrentStage = "linker"
	ErroredTorrentStageCleaner ErroredTorrentStage = "cleaner"
)

// ErroredTorrentID is the tagged primary key of an ErroredTorrent: a
// stage plus the key that failed within it (a mam_id for Grabber, an
// id/hash for Linker and Cleaner).
type ErroredTorrentID struct {
	Stage ErroredTorrentStage `json:"stage"`
	MamID uint64              `json:"mam_id,omitempty"`
	Key   string              `json:"key,omitempty"`
}

// GrabberID builds the primary key for a grabber-stage failure.
func GrabberID(mamID uint64) ErroredTorrentID {
	return ErroredTorrentID{Stage: ErroredTorrentStageGrabber, MamID: mamID}
}

// LinkerID builds the primary key for a linker-stage failure.
func LinkerID(key string) ErroredTorrentID {
	return ErroredTorrentID{Stage: ErroredTorrentStageLinker, Key: key}
}

// CleanerID builds the primary key for a cleaner-stage failure.
func CleanerID(key string) ErroredTorrentID {
	return ErroredTorrentID{Stage: ErroredTorrentStageCleaner, Key: key}
}

// ErroredTorrent is the last unresolved failure for a given (stage, key).
// It is not a history: a later success at the same (stage, key) deletes
// the row entirely.
type ErroredTorrent struct {
	ID    ErroredTorrentID `json:"id"`
	Title string           `json:"title"`
	Error string           `json:"error"`
	Meta  *TorrentMeta     `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EventType tags an Event's payload kind.
type EventType string

const (
	EventTypeGrabbed           EventType = "grabbed"
	EventTypeLinked            EventType = "linked"
	EventTypeCleaned           EventType = "cleaned"
	EventTypeUpdated           EventType = "updated"
	EventTypeRemovedFromTracker EventType = "removed_from_tracker"
)

// FieldChange is one field's before/after value within an Updated event.
type FieldChange struct {
	Field    string `json:"field"`
	FromText string `json:"from_text"`
	ToText   string `json:"to_text"`
}

// Event is an append-only record of something that happened to a torrent.
// Exactly one of the typed payload fields is populated, matching Type.
type Event struct {
	ID        string    `json:"id"`
	TorrentID string    `json:"torrent_id,omitempty"`
	MamID     uint64    `json:"mam_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Type EventType `json:"type"`

	Grabbed *EventGrabbed `json:"grabbed,omitempty"`
	Linked  *EventLinked  `json:"linked,omitempty"`
	Cleaned *EventCleaned `json:"cleaned,omitempty"`
	Updated *EventUpdated `json:"updated,omitempty"`
}

type EventGrabbed struct {
	Grabber string       `json:"grabber,omitempty"`
	Cost    *TorrentCost `json:"cost,omitempty"`
	Wedged  bool         `json:"wedged"`
}

type EventLinked struct {
	Linker      string `json:"linker,omitempty"`
	LibraryPath string `json:"library_path"`
}

type EventCleaned struct {
	LibraryPath string   `json:"library_path"`
	Files       []string `json:"files"`
}

type EventUpdated struct {
	Fields         []FieldChange  `json:"fields"`
	Source         MetadataSource `json:"source"`
	SourceProvider string         `json:"source_provider,omitempty"`
}

// List is an external reading list the list ingester pulls periodically.
type List struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	BuildDate *time.Time `json:"build_date,omitempty"`
}

// ListItemTorrent links a ListItem to a Torrent the autograbber matched
// against it for one of the two formats.
type ListItemTorrent struct {
	TorrentID string    `json:"torrent_id"`
	MatchedAt time.Time `json:"matched_at"`
}

// ListItem is one row of a List: a single book the list's owner wants.
type ListItem struct {
	GUID   string `json:"guid"`
	ListID string `json:"list_id"`

	Title   string        `json:"title"`
	Authors []string      `json:"authors"`
	Series  []SeriesEntry `json:"series,omitempty"`

	CoverURL string `json:"cover_url,omitempty"`
	BookURL  string `json:"book_url,omitempty"`
	ISBN     uint64 `json:"isbn,omitempty"`

	PreferFormat *MainCat `json:"prefer_format,omitempty"`

	AllowAudio   bool             `json:"allow_audio"`
	AudioTorrent *ListItemTorrent `json:"audio_torrent,omitempty"`
	AllowEbook   bool             `json:"allow_ebook"`
	EbookTorrent *ListItemTorrent `json:"ebook_torrent,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	MarkedDoneAt *time.Time `json:"marked_done_at,omitempty"`
}
