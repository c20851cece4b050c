// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"sync"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// Registry holds the Providers enabled by configuration, queried in
// registration order until one returns a match.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider, most-preferred first.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Providers returns a snapshot of the registered providers.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// FetchFirstMatch tries every registered provider in order, returning
// the first successful match along with the id of the provider that
// produced it. Per-provider failures (including timeouts, which are an
// ordinary NotFound from the caller's perspective per §4.5) are not
// fatal; only exhausting every provider without a match is.
func (r *Registry) FetchFirstMatch(ctx context.Context, query domain.TorrentMeta) (domain.TorrentMeta, string, error) {
	for _, p := range r.Providers() {
		meta, err := p.Fetch(ctx, query)
		if err == nil {
			return meta, p.ID(), nil
		}
	}
	return domain.TorrentMeta{}, "", ErrNoMatch
}
