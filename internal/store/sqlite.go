package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection and SQLite has a single writer.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS recipe_cache (
	url        TEXT PRIMARY KEY,
	recipe     TEXT NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quotas (
	identity     TEXT PRIMARY KEY,
	count        INTEGER NOT NULL DEFAULT 0,
	period_start INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS shares (
	id         TEXT PRIMARY KEY,
	recipe     TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recipe_cache_expires_at ON recipe_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_shares_expires_at ON shares(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedRecipe(ctx context.Context, url string, now time.Time) (*CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, recipe, stored_at, expires_at FROM recipe_cache WHERE url = ? AND expires_at > ?`,
		url, now.Unix(),
	)

	var e CacheEntry
	var recipeJSON string
	var storedAt, expiresAt int64
	err := row.Scan(&e.URL, &recipeJSON, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached recipe")
	}
	if err := json.Unmarshal([]byte(recipeJSON), &e.Recipe); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached recipe")
	}
	e.StoredAt = time.Unix(storedAt, 0).UTC()
	e.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &e, nil
}

func (s *SQLiteStore) SetCachedRecipe(ctx context.Context, entry CacheEntry) error {
	recipeJSON, err := json.Marshal(entry.Recipe)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recipe")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recipe_cache (url, recipe, stored_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET recipe = excluded.recipe, stored_at = excluded.stored_at, expires_at = excluded.expires_at
		 WHERE recipe_cache.expires_at <= excluded.stored_at`,
		entry.URL, string(recipeJSON), entry.StoredAt.Unix(), entry.ExpiresAt.Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached recipe")
}

func (s *SQLiteStore) DeleteExpiredRecipes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recipe_cache WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired recipes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetQuota(ctx context.Context, identity string) (*QuotaRecord, error) {
	var q QuotaRecord
	var periodStart int64
	err := s.db.QueryRowContext(ctx,
		`SELECT identity, count, period_start FROM quotas WHERE identity = ?`, identity,
	).Scan(&q.Identity, &q.Count, &periodStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get quota")
	}
	q.PeriodStart = time.Unix(periodStart, 0).UTC()
	return &q, nil
}

func (s *SQLiteStore) IncrementQuota(ctx context.Context, identity string, periodStart time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO quotas (identity, count, period_start, updated_at) VALUES (?, 1, ?, ?)
		 ON CONFLICT (identity) DO UPDATE SET
			count = CASE WHEN quotas.period_start < excluded.period_start THEN 1 ELSE quotas.count + 1 END,
			period_start = MAX(quotas.period_start, excluded.period_start),
			updated_at = excluded.updated_at
		 RETURNING count`,
		identity, periodStart.Unix(), time.Now().UTC().Unix(),
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: increment quota")
	}
	return count, nil
}

func (s *SQLiteStore) GetShare(ctx context.Context, id string, now time.Time) (*Share, error) {
	var sh Share
	var recipeJSON string
	var createdAt, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, recipe, source_url, created_at, expires_at FROM shares WHERE id = ? AND expires_at > ?`,
		id, now.Unix(),
	).Scan(&sh.ID, &recipeJSON, &sh.SourceURL, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get share")
	}
	if err := json.Unmarshal([]byte(recipeJSON), &sh.Recipe); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal shared recipe")
	}
	sh.CreatedAt = time.Unix(createdAt, 0).UTC()
	sh.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &sh, nil
}

func (s *SQLiteStore) PutShare(ctx context.Context, share Share) error {
	recipeJSON, err := json.Marshal(share.Recipe)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal shared recipe")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shares (id, recipe, source_url, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		share.ID, string(recipeJSON), share.SourceURL, share.CreatedAt.Unix(), share.ExpiresAt.Unix(),
	)
	return eris.Wrap(err, "sqlite: put share")
}
