// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stirlingmouse/mlm/internal/pipeline"
)

func TestPipelineCollector_EmitsOnlyCountersForUnrunPipeline(t *testing.T) {
	t.Parallel()

	runner := pipeline.NewRunner("autograbber:test", 0, func(ctx context.Context) error { return nil })
	c := NewPipelineCollector([]*pipeline.Runner{runner})

	count := testutil.CollectAndCount(c)
	assert.Equal(t, 2, count, "only run_total and error_total should be emitted before any tick")
}

func TestPipelineCollector_EmitsFullSetAfterRun(t *testing.T) {
	t.Parallel()

	runner := pipeline.NewRunner("linker", 0, func(ctx context.Context) error { return nil })
	runner.Trigger.Fire()
	go runner.Run(contextWithDeadline(t))
	waitForRunCount(t, runner, 1)

	c := NewPipelineCollector([]*pipeline.Runner{runner})
	count := testutil.CollectAndCount(c)
	assert.Equal(t, 5, count, "all five series should be emitted once a tick has run")
}

func TestPipelineCollector_ReportsFailureAsZero(t *testing.T) {
	t.Parallel()

	runner := pipeline.NewRunner("downloader", 0, func(ctx context.Context) error { return errors.New("boom") })
	runner.Trigger.Fire()
	go runner.Run(contextWithDeadline(t))
	waitForRunCount(t, runner, 1)

	stats := runner.Stats()
	require.Error(t, stats.LastErr)
	assert.Equal(t, 1, stats.ErrCount)

	c := NewPipelineCollector([]*pipeline.Runner{runner})
	expected := `
# HELP mlm_pipeline_last_run_success Whether the most recent tick succeeded (1) or failed (0) by pipeline
# TYPE mlm_pipeline_last_run_success gauge
mlm_pipeline_last_run_success{pipeline="downloader"} 0
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "mlm_pipeline_last_run_success"))
}

func TestQBittorrentCollector_NilPoolEmitsNothing(t *testing.T) {
	t.Parallel()

	c := NewQBittorrentCollector(nil)
	count := testutil.CollectAndCount(c)
	assert.Equal(t, 0, count)
}

func contextWithDeadline(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func waitForRunCount(t *testing.T, r *pipeline.Runner, n int) {
	t.Helper()
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r.Stats().RunCount >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("runner did not reach run count %d in time", n)
}
