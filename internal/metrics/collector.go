// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stirlingmouse/mlm/internal/pipeline"
	"github.com/stirlingmouse/mlm/internal/qbittorrent"
)

// PipelineCollector exports each configured pipeline.Runner's Stats()
// snapshot (§6.5's status surface, re-exposed as Prometheus gauges
// instead of the teacher's per-torrent qBittorrent sync counters, which
// have no equivalent here: mlmd drives a handful of named background
// loops, not a live torrent list).
type PipelineCollector struct {
	runners []*pipeline.Runner

	runTotalDesc       *prometheus.Desc
	errTotalDesc       *prometheus.Desc
	lastDurationDesc   *prometheus.Desc
	lastRunSuccessDesc *prometheus.Desc
	lastRunAtDesc      *prometheus.Desc
}

// NewPipelineCollector builds a collector over the given runners. A nil
// or empty slice is valid: Collect simply emits nothing.
func NewPipelineCollector(runners []*pipeline.Runner) *PipelineCollector {
	return &PipelineCollector{
		runners: runners,
		runTotalDesc: prometheus.NewDesc(
			"mlm_pipeline_run_total",
			"Total number of ticks run by pipeline",
			[]string{"pipeline"},
			nil,
		),
		errTotalDesc: prometheus.NewDesc(
			"mlm_pipeline_error_total",
			"Total number of failed ticks by pipeline",
			[]string{"pipeline"},
			nil,
		),
		lastDurationDesc: prometheus.NewDesc(
			"mlm_pipeline_last_run_duration_seconds",
			"Duration of the most recent tick by pipeline",
			[]string{"pipeline"},
			nil,
		),
		lastRunSuccessDesc: prometheus.NewDesc(
			"mlm_pipeline_last_run_success",
			"Whether the most recent tick succeeded (1) or failed (0) by pipeline",
			[]string{"pipeline"},
			nil,
		),
		lastRunAtDesc: prometheus.NewDesc(
			"mlm_pipeline_last_run_timestamp_seconds",
			"Unix timestamp of the most recent tick by pipeline",
			[]string{"pipeline"},
			nil,
		),
	}
}

func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runTotalDesc
	ch <- c.errTotalDesc
	ch <- c.lastDurationDesc
	ch <- c.lastRunSuccessDesc
	ch <- c.lastRunAtDesc
}

func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	for _, r := range c.runners {
		if r == nil {
			continue
		}
		stats := r.Stats()

		ch <- prometheus.MustNewConstMetric(c.runTotalDesc, prometheus.CounterValue, float64(stats.RunCount), r.Name)
		ch <- prometheus.MustNewConstMetric(c.errTotalDesc, prometheus.CounterValue, float64(stats.ErrCount), r.Name)

		if stats.RunCount == 0 {
			continue
		}

		ch <- prometheus.MustNewConstMetric(c.lastDurationDesc, prometheus.GaugeValue, stats.LastDuration.Seconds(), r.Name)
		ch <- prometheus.MustNewConstMetric(c.lastRunAtDesc, prometheus.GaugeValue, float64(stats.LastFinish.Unix()), r.Name)

		success := 1.0
		if stats.LastErr != nil {
			success = 0.0
		}
		ch <- prometheus.MustNewConstMetric(c.lastRunSuccessDesc, prometheus.GaugeValue, success, r.Name)
	}
}

// QBittorrentCollector exports each pool instance's backoff state
// (§4.3.4), the daemon's only per-instance qBittorrent signal now that
// there's no live sync manager polling torrent lists.
type QBittorrentCollector struct {
	pool *qbittorrent.ClientPool

	backoffDesc         *prometheus.Desc
	backoffAttemptsDesc *prometheus.Desc
}

// NewQBittorrentCollector builds a collector over pool. pool may be nil.
func NewQBittorrentCollector(pool *qbittorrent.ClientPool) *QBittorrentCollector {
	return &QBittorrentCollector{
		pool: pool,
		backoffDesc: prometheus.NewDesc(
			"mlm_qbittorrent_instance_backoff",
			"Whether a configured qBittorrent instance is currently backed off (1) or not (0)",
			[]string{"instance_id", "url"},
			nil,
		),
		backoffAttemptsDesc: prometheus.NewDesc(
			"mlm_qbittorrent_instance_backoff_attempts",
			"Consecutive failure count driving a configured qBittorrent instance's backoff",
			[]string{"instance_id", "url"},
			nil,
		),
	}
}

func (c *QBittorrentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.backoffDesc
	ch <- c.backoffAttemptsDesc
}

func (c *QBittorrentCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}

	for id, cfg := range c.pool.Configs() {
		inBackoff, _, attempts := c.pool.GetBackoffStatus(id)
		idStr := strconv.Itoa(id)

		backoffValue := 0.0
		if inBackoff {
			backoffValue = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.backoffDesc, prometheus.GaugeValue, backoffValue, idStr, cfg.URL)
		ch <- prometheus.MustNewConstMetric(c.backoffAttemptsDesc, prometheus.GaugeValue, float64(attempts), idStr, cfg.URL)
	}
}
