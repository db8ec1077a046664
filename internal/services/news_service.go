package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lupafinanceira/backend/internal/metrics"
	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/internal/newsapi"
	"github.com/lupafinanceira/backend/internal/repository"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// Cached news stays fresh for two hours; expired entries remain usable as
// fallback when the provider is down.
const newsCacheTTL = 2 * time.Hour

// Query defaults applied when the client omits parameters.
const (
	DefaultCategory = "general"
	DefaultLanguage = "pt"
	DefaultPage     = 1
	DefaultPageSize = 20
)

// ErrNewsUnavailable means the provider failed and no cached data (fresh or
// stale) exists for the query.
var ErrNewsUnavailable = errors.New("news unavailable")

// NewsQuery is one paginated, optionally keyword-filtered news request.
type NewsQuery struct {
	Category string
	Language string
	Q        string
	Page     int
	PageSize int
}

// NewsResult is the outcome of a news request, with cache provenance.
type NewsResult struct {
	FromCache    bool
	IsFallback   bool
	CachedAt     *time.Time
	Message      string
	Articles     []models.Article
	TotalResults int
	Page         int
	PageSize     int
}

// NewsService serves news through a read-through cache with stale fallback.
type NewsService struct {
	cacheRepo repository.NewsCacheRepository
	client    newsapi.Client
	metrics   metrics.NewsMetrics
	log       *logger.Logger
}

// NewNewsService wires the news service.
func NewNewsService(
	cacheRepo repository.NewsCacheRepository,
	client newsapi.Client,
	m metrics.NewsMetrics,
	log *logger.Logger,
) *NewsService {
	return &NewsService{
		cacheRepo: cacheRepo,
		client:    client,
		metrics:   m,
		log:       log,
	}
}

// GetNews resolves a news query: valid cache entry first, then the provider,
// then any stale entry for the key, and only then ErrNewsUnavailable.
func (s *NewsService) GetNews(ctx context.Context, query NewsQuery) (*NewsResult, error) {
	query = applyDefaults(query)
	cacheKey := buildCacheKey(query)
	s.log.Debugw("Fetching news", "cacheKey", cacheKey, "page", query.Page, "pageSize", query.PageSize)

	// 1. Valid cache entry: fast path, no provider call.
	entry, err := s.cacheRepo.GetValid(ctx, cacheKey, time.Now())
	if err == nil {
		s.metrics.IncCacheHit()
		s.log.Debugw("News cache hit", "cacheKey", cacheKey)
		return cachedResult(entry, query, false, ""), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		// A broken cache read is treated as a miss, not a failure.
		s.log.Warnw("News cache lookup failed, treating as miss", "error", err, "cacheKey", cacheKey)
	}
	s.metrics.IncCacheMiss()

	// 2. Cache miss: ask the provider.
	fresh, fetchErr := s.client.Fetch(ctx, newsapi.Query{
		Category: query.Category,
		Language: query.Language,
		Q:        query.Q,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if fetchErr != nil {
		s.metrics.IncProviderError()
		return s.fallback(ctx, cacheKey, query, fetchErr)
	}

	// 3. Provider success: overwrite the cache entry for this key.
	now := time.Now()
	newEntry := &models.NewsCacheEntry{
		CacheKey:     cacheKey,
		Category:     query.Category,
		Language:     query.Language,
		Page:         query.Page,
		Articles:     fresh.Articles,
		TotalResults: fresh.TotalResults,
		CachedAt:     now,
		ExpiresAt:    now.Add(newsCacheTTL),
	}
	if err := s.cacheRepo.Upsert(ctx, newEntry); err != nil {
		s.log.Errorw("Failed to save news cache entry", "error", err, "cacheKey", cacheKey)
	}

	return &NewsResult{
		FromCache:    false,
		Articles:     fresh.Articles,
		TotalResults: fresh.TotalResults,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}, nil
}

// fallback serves the newest entry for the key regardless of expiry, labeled
// with how long ago it was cached.
func (s *NewsService) fallback(ctx context.Context, cacheKey string, query NewsQuery, fetchErr error) (*NewsResult, error) {
	entry, err := s.cacheRepo.GetFallback(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Errorw("News fallback lookup failed", "error", err, "cacheKey", cacheKey)
		}
		return nil, fmt.Errorf("%w: %s", ErrNewsUnavailable, fetchErr.Error())
	}

	s.metrics.IncCacheFallback()
	age := timeAgo(entry.CachedAt)
	s.log.Warnw("Serving stale news cache entry", "cacheKey", cacheKey, "cachedAgo", age)
	message := fmt.Sprintf("Exibindo versão arquivada de %s devido a instabilidades na rede", age)
	return cachedResult(entry, query, true, message), nil
}

func cachedResult(entry *models.NewsCacheEntry, query NewsQuery, isFallback bool, message string) *NewsResult {
	cachedAt := entry.CachedAt
	return &NewsResult{
		FromCache:    true,
		IsFallback:   isFallback,
		CachedAt:     &cachedAt,
		Message:      message,
		Articles:     entry.Articles,
		TotalResults: entry.TotalResults,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
}

func applyDefaults(q NewsQuery) NewsQuery {
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	if q.Language == "" {
		q.Language = DefaultLanguage
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// buildCacheKey joins the exact query facets. The free-text query is NOT
// normalized: near-duplicate queries cache separately (product decision
// pending).
func buildCacheKey(q NewsQuery) string {
	qPart := q.Q
	if qPart == "" {
		qPart = "none"
	}
	return fmt.Sprintf("%s_%s_%s_page%d", q.Category, q.Language, qPart, q.Page)
}

// timeAgo renders the elapsed time since t in the coarsest applicable unit,
// in Portuguese.
func timeAgo(t time.Time) string {
	diff := time.Since(t)

	if days := int(diff.Hours() / 24); days > 0 {
		return fmt.Sprintf("%d %s atrás", days, plural(days, "dia", "dias"))
	}
	if hours := int(diff.Hours()); hours > 0 {
		return fmt.Sprintf("%d %s atrás", hours, plural(hours, "hora", "horas"))
	}
	minutes := int(diff.Minutes())
	return fmt.Sprintf("%d %s atrás", minutes, plural(minutes, "minuto", "minutos"))
}

func plural(n int, singular, pluralForm string) string {
	if n > 1 {
		return pluralForm
	}
	return singular
}
