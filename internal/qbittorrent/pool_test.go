// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stirlingmouse/mlm/internal/domain"
)

func newTestPool() *ClientPool {
	return NewClientPool([]domain.QBittorrentConfig{
		{URL: "http://instance-a.example", Username: "u", Password: "p"},
	})
}

func TestClientPoolBackoffLogic(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	defer pool.Close()

	id := 0

	tests := []struct {
		name           string
		err            error
		expectedBanned bool
		minBackoff     time.Duration
		maxBackoff     time.Duration
	}{
		{
			name:           "IP ban error triggers long backoff",
			err:            errors.New("User's IP is banned for too many failed login attempts"),
			expectedBanned: true,
			minBackoff:     4 * time.Minute,
			maxBackoff:     6 * time.Minute,
		},
		{
			name:           "rate limit error triggers long backoff",
			err:            errors.New("rate limit exceeded"),
			expectedBanned: true,
			minBackoff:     4 * time.Minute,
			maxBackoff:     6 * time.Minute,
		},
		{
			name:           "403 forbidden triggers long backoff",
			err:            errors.New("HTTP 403 Forbidden"),
			expectedBanned: true,
			minBackoff:     4 * time.Minute,
			maxBackoff:     6 * time.Minute,
		},
		{
			name:           "generic connection error triggers short backoff",
			err:            errors.New("connection refused"),
			expectedBanned: false,
			minBackoff:     20 * time.Second,
			maxBackoff:     40 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool.resetFailureTracking(id)
			require.False(t, pool.isInBackoff(id))

			pool.trackFailure(id, tt.err)
			require.True(t, pool.isInBackoff(id))

			require.Equal(t, tt.expectedBanned, pool.isBanError(tt.err))

			_, nextRetry, attempts := pool.GetBackoffStatus(id)
			require.Equal(t, 1, attempts)
			backoff := time.Until(nextRetry)
			require.GreaterOrEqual(t, backoff, tt.minBackoff)
			require.LessOrEqual(t, backoff, tt.maxBackoff)
		})
	}
}

func TestClientPoolBackoffEscalation(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	defer pool.Close()

	id := 0
	banError := errors.New("User's IP is banned for too many failed login attempts")

	expectedMinutes := []int{5, 10, 20, 40, 60, 60}

	for i, expectedMin := range expectedMinutes {
		t.Run(fmt.Sprintf("failure_%d", i+1), func(t *testing.T) {
			pool.trackFailure(id, banError)

			_, nextRetry, attempts := pool.GetBackoffStatus(id)
			require.Equal(t, i+1, attempts)

			backoff := time.Until(nextRetry)
			minExpected := time.Duration(expectedMin-1) * time.Minute
			maxExpected := time.Duration(expectedMin+1) * time.Minute
			require.GreaterOrEqual(t, backoff, minExpected)
			require.LessOrEqual(t, backoff, maxExpected)
		})
	}
}

func TestClientPoolResetFailureTracking(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	defer pool.Close()

	id := 0
	banError := errors.New("User's IP is banned for too many failed login attempts")

	pool.trackFailure(id, banError)
	pool.trackFailure(id, banError)
	require.True(t, pool.isInBackoff(id))

	pool.resetFailureTracking(id)
	require.False(t, pool.isInBackoff(id))

	_, _, attempts := pool.GetBackoffStatus(id)
	require.Equal(t, 0, attempts)
}

func TestClientPoolIsBanError(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	defer pool.Close()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "IP banned error", err: errors.New("User's IP is banned for too many failed login attempts"), expected: true},
		{name: "simple banned error", err: errors.New("IP is banned"), expected: true},
		{name: "rate limit error", err: errors.New("Rate limit exceeded"), expected: true},
		{name: "HTTP 403 error", err: errors.New("HTTP 403 Forbidden"), expected: true},
		{name: "connection refused", err: errors.New("connection refused"), expected: false},
		{name: "timeout error", err: errors.New("context deadline exceeded"), expected: false},
		{name: "mixed case banned error", err: errors.New("IP IS BANNED"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, pool.isBanError(tt.err))
		})
	}
}

func TestClientPoolFirstReachableAllUnreachable(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.FirstReachable(ctx)
	require.ErrorIs(t, err, domain.ErrNetwork)
}
