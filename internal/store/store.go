// Package store persists cached recipes, quota counters and share links.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// CacheEntry is a stored extraction result keyed by the literal request URL.
type CacheEntry struct {
	URL       string       `json:"url"`
	Recipe    model.Recipe `json:"recipe"`
	StoredAt  time.Time    `json:"stored_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// QuotaRecord is the extraction counter for one identity.
type QuotaRecord struct {
	Identity    string    `json:"identity"`
	Count       int       `json:"count"`
	PeriodStart time.Time `json:"period_start"`
}

// Share is a recipe published under a short id.
type Share struct {
	ID        string       `json:"id"`
	Recipe    model.Recipe `json:"recipe"`
	SourceURL string       `json:"source_url"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Store defines the persistence interface shared by the cache, the quota
// tracker and share links. Getters return nil, nil when nothing matches.
type Store interface {
	// Recipe cache
	GetCachedRecipe(ctx context.Context, url string, now time.Time) (*CacheEntry, error)
	// SetCachedRecipe inserts entry unless a live entry for the URL exists.
	SetCachedRecipe(ctx context.Context, entry CacheEntry) error
	DeleteExpiredRecipes(ctx context.Context, now time.Time) (int, error)

	// Quota
	GetQuota(ctx context.Context, identity string) (*QuotaRecord, error)
	// IncrementQuota atomically adds one to the identity's counter, first
	// resetting it when the stored period is older than periodStart, and
	// returns the new count.
	IncrementQuota(ctx context.Context, identity string, periodStart time.Time) (int, error)

	// Shares
	GetShare(ctx context.Context, id string, now time.Time) (*Share, error)
	PutShare(ctx context.Context, share Share) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return NewSQLite(cfg.DatabaseURL)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case DriverMongo:
		return NewMongo(ctx, cfg.DatabaseURL, cfg.Database)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
