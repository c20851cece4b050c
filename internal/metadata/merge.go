// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import "github.com/stirlingmouse/mlm/internal/domain"

// Merge applies incoming provider metadata onto stored, per §4.5's merge
// rules: every field overwrites only when the incoming value is
// "non-empty" for its type; source becomes Match; the id map is
// overlaid key-wise, preserving older ids for kinds the incoming meta
// doesn't mention.
func Merge(stored, incoming domain.TorrentMeta) domain.TorrentMeta {
	merged := stored

	if incoming.Title != "" {
		merged.Title = incoming.Title
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.Edition != "" {
		merged.Edition = incoming.Edition
	}
	if len(incoming.Authors) > 0 {
		merged.Authors = incoming.Authors
	}
	if len(incoming.Narrators) > 0 {
		merged.Narrators = incoming.Narrators
	}
	if len(incoming.Series) > 0 {
		merged.Series = incoming.Series
	}
	if len(incoming.Categories) > 0 {
		merged.Categories = incoming.Categories
	}
	if len(incoming.Tags) > 0 {
		merged.Tags = incoming.Tags
	}
	if len(incoming.Filetypes) > 0 {
		merged.Filetypes = incoming.Filetypes
	}
	if incoming.MainCat != nil {
		merged.MainCat = incoming.MainCat
	}
	if incoming.Language != "" {
		merged.Language = incoming.Language
	}
	if incoming.Flags != nil {
		merged.Flags = incoming.Flags
	}
	if incoming.MediaType != nil {
		merged.MediaType = incoming.MediaType
	}
	if incoming.Size > 0 {
		merged.Size = incoming.Size
	}
	if incoming.NumFiles > 0 {
		merged.NumFiles = incoming.NumFiles
	}

	if len(incoming.IDs) > 0 {
		ids := make(map[string]string, len(merged.IDs)+len(incoming.IDs))
		for k, v := range merged.IDs {
			ids[k] = v
		}
		for k, v := range incoming.IDs {
			ids[k] = v
		}
		merged.IDs = ids
	}

	merged.Source = domain.MetadataSourceMatch

	return merged
}
