// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/pipeline"
	"github.com/stirlingmouse/mlm/internal/qbittorrent"
)

// Manager owns the Prometheus registry mlmd's metrics HTTP server
// serves (§6.6, when metricsEnabled is set).
type Manager struct {
	registry          *prometheus.Registry
	pipelineCollector *PipelineCollector
	qbittorrentColl   *QBittorrentCollector
}

// NewMetricsManager builds a Manager over the daemon's pipeline runners
// and qBittorrent pool. Either may be nil, e.g. while constructing a
// Manager before the rest of the daemon has started.
func NewMetricsManager(runners []*pipeline.Runner, pool *qbittorrent.ClientPool) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipelineCollector := NewPipelineCollector(runners)
	registry.MustRegister(pipelineCollector)

	qbittorrentColl := NewQBittorrentCollector(pool)
	registry.MustRegister(qbittorrentColl)

	log.Info().Int("pipelines", len(runners)).Msg("metrics manager initialized")

	return &Manager{
		registry:          registry,
		pipelineCollector: pipelineCollector,
		qbittorrentColl:   qbittorrentColl,
	}
}

// GetRegistry returns the manager's Prometheus registry.
func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
