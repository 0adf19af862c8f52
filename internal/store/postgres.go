package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool used by the store, satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlGetCachedRecipe = `SELECT url, recipe, stored_at, expires_at FROM recipe_cache WHERE url = $1 AND expires_at > $2`
	sqlSetCachedRecipe = `INSERT INTO recipe_cache (url, recipe, stored_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET recipe = EXCLUDED.recipe, stored_at = EXCLUDED.stored_at, expires_at = EXCLUDED.expires_at
		 WHERE recipe_cache.expires_at <= EXCLUDED.stored_at`
	sqlGetQuota       = `SELECT identity, count, period_start FROM quotas WHERE identity = $1`
	sqlIncrementQuota = `INSERT INTO quotas (identity, count, period_start, updated_at) VALUES ($1, 1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE SET
			count = CASE WHEN quotas.period_start < EXCLUDED.period_start THEN 1 ELSE quotas.count + 1 END,
			period_start = GREATEST(quotas.period_start, EXCLUDED.period_start),
			updated_at = EXCLUDED.updated_at
		 RETURNING count`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS recipe_cache (
	url        TEXT PRIMARY KEY,
	recipe     JSONB NOT NULL,
	stored_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quotas (
	identity     TEXT PRIMARY KEY,
	count        INTEGER NOT NULL DEFAULT 0,
	period_start TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shares (
	id         TEXT PRIMARY KEY,
	recipe     JSONB NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recipe_cache_expires_at ON recipe_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_shares_expires_at ON shares(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedRecipe(ctx context.Context, url string, now time.Time) (*CacheEntry, error) {
	var e CacheEntry
	var recipeJSON []byte

	err := s.pool.QueryRow(ctx, sqlGetCachedRecipe, url, now).
		Scan(&e.URL, &recipeJSON, &e.StoredAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached recipe")
	}
	if err := json.Unmarshal(recipeJSON, &e.Recipe); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached recipe")
	}
	return &e, nil
}

func (s *PostgresStore) SetCachedRecipe(ctx context.Context, entry CacheEntry) error {
	recipeJSON, err := json.Marshal(entry.Recipe)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recipe")
	}
	_, err = s.pool.Exec(ctx, sqlSetCachedRecipe, entry.URL, recipeJSON, entry.StoredAt, entry.ExpiresAt)
	return eris.Wrap(err, "postgres: set cached recipe")
}

func (s *PostgresStore) DeleteExpiredRecipes(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recipe_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired recipes")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetQuota(ctx context.Context, identity string) (*QuotaRecord, error) {
	var q QuotaRecord
	err := s.pool.QueryRow(ctx, sqlGetQuota, identity).Scan(&q.Identity, &q.Count, &q.PeriodStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get quota")
	}
	return &q, nil
}

func (s *PostgresStore) IncrementQuota(ctx context.Context, identity string, periodStart time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, sqlIncrementQuota, identity, periodStart, time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: increment quota")
	}
	return count, nil
}

func (s *PostgresStore) GetShare(ctx context.Context, id string, now time.Time) (*Share, error) {
	var sh Share
	var recipeJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, recipe, source_url, created_at, expires_at FROM shares WHERE id = $1 AND expires_at > $2`,
		id, now,
	).Scan(&sh.ID, &recipeJSON, &sh.SourceURL, &sh.CreatedAt, &sh.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get share")
	}
	if err := json.Unmarshal(recipeJSON, &sh.Recipe); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal shared recipe")
	}
	return &sh, nil
}

func (s *PostgresStore) PutShare(ctx context.Context, share Share) error {
	recipeJSON, err := json.Marshal(share.Recipe)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal shared recipe")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO shares (id, recipe, source_url, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		share.ID, recipeJSON, share.SourceURL, share.CreatedAt, share.ExpiresAt,
	)
	return eris.Wrap(err, "postgres: put share")
}
