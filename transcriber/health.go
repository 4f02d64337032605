package transcriber

import (
	"context"
	"sync"
	"time"
)

// HealthCache memoizes a provider reachability probe for a TTL so the UI
// can poll cheaply without hammering the endpoint. Injected where needed
// instead of living as package-level state.
type HealthCache struct {
	probe func(ctx context.Context) error
	ttl   time.Duration

	mu      sync.Mutex
	checked time.Time
	healthy bool
}

func NewHealthCache(probe func(ctx context.Context) error, ttl time.Duration) *HealthCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &HealthCache{probe: probe, ttl: ttl}
}

// Healthy returns the cached probe result, re-probing once the TTL lapses.
func (h *HealthCache) Healthy(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.checked.IsZero() && time.Since(h.checked) < h.ttl {
		return h.healthy
	}

	h.healthy = h.probe(ctx) == nil
	h.checked = time.Now()
	return h.healthy
}

// Invalidate drops the cached result so the next call re-probes.
func (h *HealthCache) Invalidate() {
	h.mu.Lock()
	h.checked = time.Time{}
	h.mu.Unlock()
}
