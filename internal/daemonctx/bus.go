// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package daemonctx

import (
	"sync"

	"github.com/stirlingmouse/mlm/internal/domain"
)

// Event is a broadcast notification, not a journal entry: Bus only ever
// holds the latest one (§9: "one-slot broadcast suffices for UI"). The
// journal of record is internal/store's append-only events table.
type Event struct {
	Torrent *domain.Torrent
	List    *domain.List
}

// Bus is a last-value-wins broadcaster: Publish replaces the current
// value and wakes every waiter; a waiter that misses an update only ever
// observes the latest one, never a backlog.
type Bus[T any] struct {
	mu     sync.Mutex
	value  T
	hasVal bool
	wake   chan struct{}
}

// NewBus returns an empty Bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{wake: make(chan struct{})}
}

// Publish replaces the current value and wakes every blocked Wait.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = v
	b.hasVal = true
	close(b.wake)
	b.wake = make(chan struct{})
}

// Latest returns the most recently published value, if any.
func (b *Bus[T]) Latest() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.hasVal
}

// Wait returns a channel that the next Publish call closes; it does not
// block. Read the new value with Latest once the channel is closed.
func (b *Bus[T]) Wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wake
}
