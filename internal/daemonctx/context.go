// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package daemonctx is the shared context every pipeline (§4.1) is built
// against: a hot-reloadable config snapshot, the store handle, the
// qBittorrent client pool, and the last-value-wins broadcast streams
// (§6.5) the status surface reads from.
package daemonctx

import (
	"sync/atomic"

	"github.com/stirlingmouse/mlm/internal/domain"
	"github.com/stirlingmouse/mlm/internal/qbittorrent"
	"github.com/stirlingmouse/mlm/internal/store"
)

// Context is the set of resources shared across every pipeline goroutine.
// Grounded on reannounce.Service's ctxMu-guarded baseCtx field: one
// atomic snapshot per mutable dependency instead of passing a dozen
// separate parameters through every pipeline constructor.
type Context struct {
	config atomic.Pointer[domain.Config]

	Store  *store.Store
	QBPool *qbittorrent.ClientPool

	Events *Bus[Event]
}

// New builds a Context over an initial config snapshot and the shared
// store/qBittorrent-pool handles.
func New(cfg domain.Config, st *store.Store, pool *qbittorrent.ClientPool) *Context {
	c := &Context{
		Store:  st,
		QBPool: pool,
		Events: NewBus[Event](),
	}
	c.config.Store(&cfg)
	return c
}

// Config returns the current config snapshot. Safe for concurrent use
// with Reload.
func (c *Context) Config() domain.Config {
	return *c.config.Load()
}

// Reload atomically swaps in a newly parsed config, picked up by every
// pipeline on its next tick without requiring a restart.
func (c *Context) Reload(cfg domain.Config) {
	c.config.Store(&cfg)
}
