package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/pkg/logger"
)

const (
	defaultBaseURL = "https://newsapi.org/v2"
	userAgent      = "LupaFinanceira/1.0"

	// Free-text searches are biased toward the product's domain with an
	// OR-clause of finance terms appended to the user's query.
	financeFilter = "(finanças OR economia OR investimentos OR bolsa OR ações OR mercado)"

	// top-headlines is always scoped to Brazil.
	headlinesCountry = "br"
)

// Query is one news request as seen by the provider.
type Query struct {
	Category string
	Language string
	Q        string
	Page     int
	PageSize int
}

// Result is a successful provider response.
type Result struct {
	Articles     []models.Article
	TotalResults int
}

// Client fetches news from the external provider.
type Client interface {
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// Error is a provider-reported failure (status "error" in the body).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "newsapi: " + e.Message
	}
	return "newsapi: " + e.Code
}

// HTTPClient talks to the NewsAPI REST endpoints.
type HTTPClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	log *logger.Logger
}

// NewClient creates a provider client with a request timeout.
func NewClient(apiKey string, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// Fetch queries the everything endpoint when a free-text query is present,
// otherwise top-headlines. Category filtering only exists on top-headlines;
// that is a provider constraint, not a choice here.
func (c *HTTPClient) Fetch(ctx context.Context, q Query) (*Result, error) {
	params := url.Values{}
	params.Set("apiKey", c.APIKey)
	params.Set("language", q.Language)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))

	var endpoint string
	if strings.TrimSpace(q.Q) != "" {
		endpoint = "/everything"
		params.Set("q", fmt.Sprintf("%s AND %s", q.Q, financeFilter))
		params.Set("sortBy", "publishedAt")
	} else {
		endpoint = "/top-headlines"
		params.Set("country", headlinesCountry)
		if q.Category != "" && q.Category != "general" {
			params.Set("category", q.Category)
		}
	}

	reqURL := c.BaseURL + endpoint + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: failed to build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.log.Errorw("NewsAPI request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("newsapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Status       string           `json:"status"`
		Code         string           `json:"code"`
		Message      string           `json:"message"`
		Articles     []models.Article `json:"articles"`
		TotalResults int              `json:"totalResults"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.log.Errorw("Failed to decode NewsAPI response", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("newsapi: failed to decode response: %w", err)
	}

	if decoded.Status == "error" {
		apiErr := &Error{Code: decoded.Code, Message: decoded.Message}
		c.log.Errorw("NewsAPI error", "code", apiErr.Code, "message", apiErr.Message)
		return nil, apiErr
	}

	c.log.Debugw("NewsAPI returned articles", "endpoint", endpoint, "count", len(decoded.Articles), "totalResults", decoded.TotalResults)

	if decoded.Articles == nil {
		decoded.Articles = []models.Article{}
	}
	return &Result{Articles: decoded.Articles, TotalResults: decoded.TotalResults}, nil
}
