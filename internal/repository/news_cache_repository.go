package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// NewsCacheRepository persists memoized news query results, one live row per
// cache key.
type NewsCacheRepository interface {
	// GetValid returns the entry for the key if it has not expired yet.
	// Returns ErrNotFound when there is no row or the row is expired.
	GetValid(ctx context.Context, cacheKey string, now time.Time) (*models.NewsCacheEntry, error)

	// GetFallback returns the newest entry for the key regardless of expiry.
	GetFallback(ctx context.Context, cacheKey string) (*models.NewsCacheEntry, error)

	// Upsert inserts or fully replaces the entry for its cache key.
	Upsert(ctx context.Context, entry *models.NewsCacheEntry) error
}

// PostgresNewsCacheRepository implements NewsCacheRepository on pgx, storing
// the article payload as JSONB.
type PostgresNewsCacheRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresNewsCacheRepository creates the Postgres-backed cache repository.
func NewPostgresNewsCacheRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresNewsCacheRepository {
	return &PostgresNewsCacheRepository{db: db, log: log}
}

func (r *PostgresNewsCacheRepository) GetValid(ctx context.Context, cacheKey string, now time.Time) (*models.NewsCacheEntry, error) {
	query := `
		SELECT cache_key, category, language, page, data, total_results, cached_at, expires_at
		FROM news_cache
		WHERE cache_key = $1 AND expires_at > $2
	`
	return r.scanEntry(r.db.QueryRow(ctx, query, cacheKey, now))
}

func (r *PostgresNewsCacheRepository) GetFallback(ctx context.Context, cacheKey string) (*models.NewsCacheEntry, error) {
	query := `
		SELECT cache_key, category, language, page, data, total_results, cached_at, expires_at
		FROM news_cache
		WHERE cache_key = $1
		ORDER BY cached_at DESC
		LIMIT 1
	`
	return r.scanEntry(r.db.QueryRow(ctx, query, cacheKey))
}

func (r *PostgresNewsCacheRepository) Upsert(ctx context.Context, entry *models.NewsCacheEntry) error {
	payload, err := json.Marshal(entry.Articles)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	query := `
		INSERT INTO news_cache (cache_key, category, language, page, data, total_results, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cache_key) DO UPDATE SET
			category      = EXCLUDED.category,
			language      = EXCLUDED.language,
			page          = EXCLUDED.page,
			data          = EXCLUDED.data,
			total_results = EXCLUDED.total_results,
			cached_at     = EXCLUDED.cached_at,
			expires_at    = EXCLUDED.expires_at
	`

	_, err = r.db.Exec(ctx, query,
		entry.CacheKey, entry.Category, entry.Language, entry.Page,
		payload, entry.TotalResults, entry.CachedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert news cache entry: %w", err)
	}
	return nil
}

func (r *PostgresNewsCacheRepository) scanEntry(row pgx.Row) (*models.NewsCacheEntry, error) {
	var entry models.NewsCacheEntry
	var payload []byte

	err := row.Scan(
		&entry.CacheKey, &entry.Category, &entry.Language, &entry.Page,
		&payload, &entry.TotalResults, &entry.CachedAt, &entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query news cache: %w", err)
	}

	if err := json.Unmarshal(payload, &entry.Articles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache payload: %w", err)
	}
	return &entry, nil
}
