// Package cache maps source URLs to previously extracted recipes.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/store"
)

// DefaultTTL is used when the configured lifetime is not positive.
const DefaultTTL = 365 * 24 * time.Hour

// Cache is a thin policy layer over the store. Keys are the literal request
// URL; entries are written once and never refreshed before they expire.
type Cache struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over st.
func New(st store.Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: st, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the live entry for url, or nil. A store failure is logged and
// reported as a miss so a degraded store never blocks extraction.
func (c *Cache) Get(ctx context.Context, url string) (*store.CacheEntry, error) {
	entry, err := c.store.GetCachedRecipe(ctx, url, c.now().UTC())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("cache: read failed, treating as miss", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	if entry != nil && !entry.Recipe.Valid() {
		zap.L().Warn("cache: ignoring invalid cached recipe", zap.String("url", url))
		return nil, nil
	}
	return entry, nil
}

// Put stores a recipe under url. Invalid recipes are refused.
func (c *Cache) Put(ctx context.Context, url string, r *model.Recipe) error {
	if r == nil || !r.Valid() {
		return eris.New("cache: refusing to store invalid recipe")
	}
	now := c.now().UTC()
	err := c.store.SetCachedRecipe(ctx, store.CacheEntry{
		URL:       url,
		Recipe:    *r,
		StoredAt:  now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		zap.L().Warn("cache: write failed", zap.String("url", url), zap.Error(err))
		return eris.Wrap(err, "cache: put")
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	n, err := c.store.DeleteExpiredRecipes(ctx, c.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	return n, nil
}

// RunPruner prunes on every interval until ctx is cancelled.
func (c *Cache) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Prune(ctx)
			if err != nil {
				zap.L().Warn("cache: prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("cache: pruned expired entries", zap.Int("deleted", n))
			}
		}
	}
}
