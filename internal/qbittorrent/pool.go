// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"

	"github.com/stirlingmouse/mlm/internal/domain"
)

const categoryCacheTTL = 5 * time.Minute

// failureInfo tracks one pool entry's backoff state, escalating on
// repeated failures and resetting on the next success.
type failureInfo struct {
	attempts  int
	isBanned  bool
	nextRetry time.Time
}

// ClientPool holds one lazily-connected *Client per configured
// qbittorrent[] pool entry (§6.4) and implements "first reachable"
// selection (§4.3.4): the downloader asks for a client and gets
// whichever configured instance is both out of backoff and currently
// reachable, tried in configured order.
type ClientPool struct {
	mu      sync.RWMutex
	configs []domain.QBittorrentConfig
	clients map[int]*Client

	failureTracker map[int]*failureInfo

	categoryCache *ttlcache.Cache[string, struct{}]
}

// NewClientPool builds a pool over the configured instances. Instances
// are not connected eagerly; FirstReachable connects lazily so a
// temporarily-down instance at startup doesn't fail the whole pool.
func NewClientPool(configs []domain.QBittorrentConfig) *ClientPool {
	return &ClientPool{
		configs:        configs,
		clients:        make(map[int]*Client),
		failureTracker: make(map[int]*failureInfo),
		categoryCache: ttlcache.New(ttlcache.Options[string, struct{}]{}.
			SetDefaultTTL(categoryCacheTTL)),
	}
}

// Configs returns a copy of the pool's configured instances, in the
// same order used by FirstReachable and GetBackoffStatus's id. Used by
// internal/metrics to label per-instance gauges without exposing the
// pool's internal maps.
func (p *ClientPool) Configs() []domain.QBittorrentConfig {
	out := make([]domain.QBittorrentConfig, len(p.configs))
	copy(out, p.configs)
	return out
}

// Close releases the pool's cache resources.
func (p *ClientPool) Close() {
	p.categoryCache.Close()
}

// FirstReachable returns the first configured instance that is out of
// backoff and answers a health check, connecting it if necessary.
// Returns domain.ErrNetwork if every instance is unreachable or backed off.
func (p *ClientPool) FirstReachable(ctx context.Context) (*Client, error) {
	for id := range p.configs {
		if p.isInBackoff(id) {
			continue
		}

		client, err := p.getOrConnect(ctx, id)
		if err != nil {
			p.trackFailure(id, err)
			continue
		}

		if err := client.HealthCheck(ctx); err != nil {
			p.trackFailure(id, err)
			continue
		}

		p.resetFailureTracking(id)
		return client, nil
	}

	return nil, fmt.Errorf("%w: no reachable qbittorrent instance in pool of %d", domain.ErrNetwork, len(p.configs))
}

func (p *ClientPool) getOrConnect(ctx context.Context, id int) (*Client, error) {
	p.mu.RLock()
	client, ok := p.clients[id]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	cfg := p.configs[id]
	client, err := NewClient(id, cfg.URL, cfg.Username, cfg.Password, nil, nil)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.clients[id] = client
	p.mu.Unlock()
	return client, nil
}

// EnsureCategory creates category on client if it does not already
// exist, caching the existence check for categoryCacheTTL (§4.3.4) so
// a busy autograbber doesn't re-query categories on every grab.
func (p *ClientPool) EnsureCategory(ctx context.Context, client *Client, category string) error {
	if category == "" {
		return nil
	}

	cacheKey := fmt.Sprintf("%d/%s", client.GetInstanceID(), category)
	if _, found := p.categoryCache.Get(cacheKey); found {
		return nil
	}

	categories, err := client.GetCategoriesCtx(ctx)
	if err != nil {
		return fmt.Errorf("%w: list categories: %v", domain.ErrNetwork, err)
	}

	if _, exists := categories[category]; !exists {
		if err := client.CreateCategoryCtx(ctx, category, ""); err != nil {
			return fmt.Errorf("%w: create category %q: %v", domain.ErrNetwork, category, err)
		}
		log.Info().Str("category", category).Int("instanceID", client.GetInstanceID()).Msg("created qbittorrent category")
	}

	p.categoryCache.Set(cacheKey, struct{}{}, ttlcache.DefaultTTL)
	return nil
}

func (p *ClientPool) isInBackoff(id int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.failureTracker[id]
	if !ok {
		return false
	}
	return time.Now().Before(info.nextRetry)
}

// GetBackoffStatus reports whether id is currently backed off, and if so
// until when and after how many consecutive failures.
func (p *ClientPool) GetBackoffStatus(id int) (inBackoff bool, nextRetry time.Time, attempts int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.failureTracker[id]
	if !ok {
		return false, time.Time{}, 0
	}
	return time.Now().Before(info.nextRetry), info.nextRetry, info.attempts
}

func (p *ClientPool) resetFailureTracking(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failureTracker, id)
}

// trackFailure escalates backoff on repeated failures: ban/rate-limit
// errors start at 5 minutes and double up to a 1 hour ceiling; ordinary
// connection errors get a short 30s±5s jittered retry since they're
// usually transient network blips rather than tracker-side lockouts.
func (p *ClientPool) trackFailure(id int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.failureTracker[id]
	if !ok {
		info = &failureInfo{}
		p.failureTracker[id] = info
	}
	info.attempts++
	info.isBanned = p.isBanError(err)

	if info.isBanned {
		minutes := 5 << (info.attempts - 1)
		if minutes > 60 {
			minutes = 60
		}
		info.nextRetry = time.Now().Add(time.Duration(minutes) * time.Minute)
		return
	}

	jitter := time.Duration(rand.Intn(10)-5) * time.Second
	info.nextRetry = time.Now().Add(30*time.Second + jitter)
}

func (p *ClientPool) isBanError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "banned") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "403")
}
