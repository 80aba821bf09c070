package settings

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 5 * time.Minute

type snapshot struct {
	settings Settings
	loadedAt time.Time
}

// CachedStore pulls from its Source when the snapshot is older than the TTL.
// Concurrent refreshes collapse into one load.
type CachedStore struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group
	snap  atomic.Pointer[snapshot]
}

func NewCachedStore(source Source, ttl time.Duration, now func() time.Time) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CachedStore{source: source, ttl: ttl, now: now}
}

// Get returns the cached snapshot, refreshing it on expiry. A failed refresh
// keeps serving the stale snapshot, or the defaults when none was ever loaded.
func (c *CachedStore) Get(ctx context.Context) (Settings, error) {
	if s := c.snap.Load(); s != nil && c.now().Sub(s.loadedAt) < c.ttl {
		return s.settings, nil
	}

	v, err, _ := c.group.Do("settings", func() (any, error) {
		if s := c.snap.Load(); s != nil && c.now().Sub(s.loadedAt) < c.ttl {
			return s.settings, nil
		}
		loaded, err := c.source.Load(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "settings: load")
		}
		loaded = loaded.Normalize()
		c.snap.Store(&snapshot{settings: loaded, loadedAt: c.now()})
		return loaded, nil
	})
	if err != nil {
		zap.L().Warn("settings: refresh failed, serving previous snapshot", zap.Error(err))
		if s := c.snap.Load(); s != nil {
			return s.settings, nil
		}
		return Defaults(), nil
	}
	return v.(Settings), nil
}

// Invalidate forces the next Get to reload.
func (c *CachedStore) Invalidate() {
	c.snap.Store(nil)
}
