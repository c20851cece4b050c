// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// TrackerUserInfo is a snapshot of the authenticated user's credit state on
// the tracker, read once per downloader tick (§4.3 step 1). BufferBytes is
// the free upload buffer available to spend on Ratio-cost grabs; UnsatCount
// and UnsatLimit are the tracker's own unsatisfied-ratio counters, distinct
// from the locally configured unsat_buffer threshold.
type TrackerUserInfo struct {
	Username    string
	BufferBytes uint64
	UnsatCount  uint64
	UnsatLimit  uint64
	Wedges      uint64
}
