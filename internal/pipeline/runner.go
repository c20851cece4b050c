// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RunFunc is one pipeline tick. It should itself be idempotent and
// bounded in time; Runner does not enforce a per-tick timeout beyond
// whatever deadline ctx already carries.
type RunFunc func(ctx context.Context) error

// Stats is a snapshot of a pipeline's recent run history, guarded by a
// mutex the way reannounce.Service guards its historyMu buffers.
type Stats struct {
	LastStart    time.Time
	LastFinish   time.Time
	LastErr      error
	RunCount     int
	ErrCount     int
	LastDuration time.Duration
}

// Runner drives one named pipeline on an interval, with an out-of-cycle
// Trigger and a running snapshot of its recent outcomes.
type Runner struct {
	Name     string
	Interval time.Duration
	Fn       RunFunc
	Trigger  *Trigger

	statsMu sync.RWMutex
	stats   Stats
}

// NewRunner builds a Runner. interval <= 0 disables the ticker: the
// pipeline only runs when Trigger.Fire is called.
func NewRunner(name string, interval time.Duration, fn RunFunc) *Runner {
	return &Runner{
		Name:     name,
		Interval: interval,
		Fn:       fn,
		Trigger:  NewTrigger(),
	}
}

// Run blocks, ticking Fn on Interval and on every Trigger.Fire, until ctx
// is canceled.
func (r *Runner) Run(ctx context.Context) {
	var tickC <-chan time.Time
	if r.Interval > 0 {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			r.tick(ctx)
		case <-r.Trigger.C():
			r.Trigger.Clear()
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	err := r.Fn(ctx)
	finish := time.Now()

	r.statsMu.Lock()
	r.stats.LastStart = start
	r.stats.LastFinish = finish
	r.stats.LastDuration = finish.Sub(start)
	r.stats.LastErr = err
	r.stats.RunCount++
	if err != nil {
		r.stats.ErrCount++
	}
	r.statsMu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("pipeline", r.Name).Dur("duration", finish.Sub(start)).Msg("pipeline run failed")
	} else {
		log.Debug().Str("pipeline", r.Name).Dur("duration", finish.Sub(start)).Msg("pipeline run completed")
	}
}

// Stats returns a snapshot of the pipeline's most recent run.
func (r *Runner) Stats() Stats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}
