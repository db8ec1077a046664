package models

import "time"

// Article is one news item as returned by the provider. The JSON field
// names follow the provider's wire format so cached payloads round-trip
// unchanged to the client.
type Article struct {
	Source      ArticleSource `json:"source"`
	Author      string        `json:"author"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	URLToImage  string        `json:"urlToImage"`
	PublishedAt string        `json:"publishedAt"`
	Content     string        `json:"content"`
}

// ArticleSource identifies the publication an article came from.
type ArticleSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewsCacheEntry is one memoized news query result, keyed by the exact
// query-parameter tuple. An entry is valid while now < ExpiresAt and usable
// as fallback at any age.
type NewsCacheEntry struct {
	CacheKey     string    `db:"cache_key" json:"cache_key"`
	Category     string    `db:"category" json:"category"`
	Language     string    `db:"language" json:"language"`
	Page         int       `db:"page" json:"page"`
	Articles     []Article `db:"data" json:"data"`
	TotalResults int       `db:"total_results" json:"total_results"`
	CachedAt     time.Time `db:"cached_at" json:"cached_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}
