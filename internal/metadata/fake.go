// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// FakeProvider is a canned-response Provider for registry and fallback
// tests, grounded on original_source/mlm_meta/src/providers/fake.rs.
type FakeProvider struct {
	IDValue string
	Meta    *domain.TorrentMeta
}

// NewFakeProvider builds a FakeProvider that returns meta on every
// Fetch, or ErrNoMatch when meta is nil.
func NewFakeProvider(id string, meta *domain.TorrentMeta) *FakeProvider {
	return &FakeProvider{IDValue: id, Meta: meta}
}

func (p *FakeProvider) ID() string { return p.IDValue }

func (p *FakeProvider) Fetch(ctx context.Context, query domain.TorrentMeta) (domain.TorrentMeta, error) {
	if p.Meta == nil {
		return domain.TorrentMeta{}, ErrNoMatch
	}
	return *p.Meta, nil
}
