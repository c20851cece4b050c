// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version metadata set via -ldflags at build
// time, and derives the User-Agent string the tracker client identifies
// itself with.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Version, Commit, and Date are overridden via -ldflags -X at build time.
// Their zero values describe an unreleased development build.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent on the tracker client's JSON API requests. Torrent
// downloads do not set it, and metadata providers send their own
// browser-like User-Agent instead.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("mlm/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String renders build metadata as the three-line form printed by the
// version CLI command.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

// buildInfo is the JSON shape returned by JSON.
type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// JSON renders build metadata as a JSON object.
func JSON() ([]byte, error) {
	return json.Marshal(buildInfo{Version: Version, Commit: Commit, Date: Date})
}
