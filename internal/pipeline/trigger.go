// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline runs the daemon's named background loops (autograbber,
// downloader, linker, cleaner, list ingester) on a shared ticker+latch
// shape, generalized from reannounce.Service's single-purpose loop.
package pipeline

import "sync"

// Trigger is a single-slot coalescing latch (§4.1.1, §9 "watch
// channels"): any number of Fire calls before the next Run collapse into
// one extra run, rather than queuing N runs. Grounded on pkg/debounce's
// debounced trigger, simplified from "debounce after a delay" to
// "coalesce until the next tick" since pipelines already run on a ticker.
type Trigger struct {
	mu      sync.Mutex
	pending bool
	ch      chan struct{}
}

// NewTrigger returns a Trigger with no pending fire.
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

// Fire requests an out-of-cycle run. Repeated calls before the run
// starts are coalesced into a single run.
func (t *Trigger) Fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		return
	}
	t.pending = true
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// C returns the channel a runner selects on alongside its ticker.
func (t *Trigger) C() <-chan struct{} {
	return t.ch
}

// Clear marks the pending fire as consumed, allowing the next Fire to
// enqueue again. Call after handling a receive from C.
func (t *Trigger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
}
