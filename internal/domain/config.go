// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// LinkMethod is how the linker places a file into the library directory.
type LinkMethod string

const (
	LinkMethodHardlink LinkMethod = "hardlink"
	LinkMethodSymlink  LinkMethod = "symlink"
	LinkMethodCopy     LinkMethod = "copy"
)

// Config represents the application configuration.
type Config struct {
	Version string

	// Daemon identity and placement.
	TrackerID  string     `toml:"trackerId" mapstructure:"trackerId"`
	WebPort    int        `toml:"webPort" mapstructure:"webPort"`
	LibraryDir string     `toml:"libraryDir" mapstructure:"libraryDir"`
	RipDir     string     `toml:"ripDir" mapstructure:"ripDir"`
	LinkMethod LinkMethod `toml:"linkMethod" mapstructure:"linkMethod"`

	// Admission defaults, overridable per SelectedTorrent.
	UnsatBuffer uint64 `toml:"unsatBuffer" mapstructure:"unsatBuffer"`
	WedgeBuffer uint64 `toml:"wedgeBuffer" mapstructure:"wedgeBuffer"`

	// FormatPreference ranks filetypes best-to-worst for the linker's
	// format selection and dedup ranking (§4.4 step 2/dedup decision).
	// A filetype absent from this list ranks below every listed one.
	FormatPreference []string `toml:"formatPreference" mapstructure:"formatPreference"`

	// GracePeriodSecs bounds how long shutdown waits for in-flight
	// pipeline ticks to finish (§6.6, default 30s).
	GracePeriodSecs int `toml:"gracePeriodSecs" mapstructure:"gracePeriodSecs"`

	QBittorrent       []QBittorrentConfig      `toml:"qbittorrent" mapstructure:"qbittorrent"`
	Audiobookshelf    *AudiobookshelfConfig    `toml:"audiobookshelf" mapstructure:"audiobookshelf"`
	Tags              []TagProfileConfig       `toml:"tags" mapstructure:"tags"`
	Autograbbers      []AutograbberConfig      `toml:"autograbbers" mapstructure:"autograbbers"`
	GoodreadsLists    []GoodreadsListConfig    `toml:"goodreadsLists" mapstructure:"goodreadsLists"`
	MetadataProviders []MetadataProviderConfig `toml:"metadataProviders" mapstructure:"metadataProviders"`

	// Ambient: logging, metrics, data directory. Named and shaped the way
	// the teacher daemon does it, not part of the pipeline domain.
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	DataDir      string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`
}

// QBittorrentConfig is one entry in the configured qBittorrent instance pool.
type QBittorrentConfig struct {
	URL      string `toml:"url" mapstructure:"url"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
}

// AudiobookshelfConfig points the library matcher at an optional
// Audiobookshelf instance to cross-reference library state against.
type AudiobookshelfConfig struct {
	URL    string `toml:"url" mapstructure:"url"`
	APIKey string `toml:"apiKey" mapstructure:"apiKey"`
}

// TagProfileConfig assigns a category and tags to SelectedTorrents whose
// TorrentMeta matches Filter.
type TagProfileConfig struct {
	Name     string   `toml:"name" mapstructure:"name"`
	Filter   string   `toml:"filter" mapstructure:"filter"`
	Category string   `toml:"category" mapstructure:"category"`
	Tags     []string `toml:"tags" mapstructure:"tags"`
}

// AutograbberConfig is one search profile the autograbber pipeline
// evaluates every IntervalSecs.
type AutograbberConfig struct {
	Name         string      `toml:"name" mapstructure:"name"`
	Query        string      `toml:"query" mapstructure:"query"`
	Filter       string      `toml:"filter" mapstructure:"filter"`
	Edition      string      `toml:"edition" mapstructure:"edition"`
	Cost         TorrentCost `toml:"cost" mapstructure:"cost"`
	IntervalSecs int         `toml:"intervalSecs" mapstructure:"intervalSecs"`
	DryRun       bool        `toml:"dryRun" mapstructure:"dryRun"`

	UnsatBuffer *uint64 `toml:"unsatBuffer" mapstructure:"unsatBuffer"`
	WedgeBuffer *uint64 `toml:"wedgeBuffer" mapstructure:"wedgeBuffer"`
}

// GoodreadsListConfig is one external reading list the list ingester
// pulls, matched against the autograbber's filters before grabbing.
type GoodreadsListConfig struct {
	URL                string   `toml:"url" mapstructure:"url"`
	Name               string   `toml:"name" mapstructure:"name"`
	PreferFormat       *MainCat `toml:"preferFormat" mapstructure:"preferFormat"`
	Grab               []string `toml:"grab" mapstructure:"grab"`
	SearchIntervalSecs int      `toml:"searchIntervalSecs" mapstructure:"searchIntervalSecs"`
	DryRun             bool     `toml:"dryRun" mapstructure:"dryRun"`
}

// MetadataProviderKind tags which metadata provider a
// MetadataProviderConfig configures.
type MetadataProviderKind string

const (
	MetadataProviderHardcover   MetadataProviderKind = "hardcover"
	MetadataProviderRomanceIo   MetadataProviderKind = "romanceio"
	MetadataProviderOpenLibrary MetadataProviderKind = "openlibrary"
)

// MetadataProviderConfig configures one metadata provider. Kind selects
// which fields apply; APIKey is only meaningful for Hardcover.
type MetadataProviderConfig struct {
	Kind        MetadataProviderKind `toml:"kind" mapstructure:"kind"`
	Enabled     bool                 `toml:"enabled" mapstructure:"enabled"`
	TimeoutSecs int                  `toml:"timeoutSecs" mapstructure:"timeoutSecs"`
	APIKey      string               `toml:"apiKey" mapstructure:"apiKey"`
}
