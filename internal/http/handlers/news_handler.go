package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/internal/services"
	"github.com/lupafinanceira/backend/pkg/logger"
	"github.com/lupafinanceira/backend/pkg/res"
)

// NewsHandler serves the cached news feed.
type NewsHandler struct {
	service *services.NewsService
	log     *logger.Logger
}

// NewNewsHandler creates a new NewsHandler.
func NewNewsHandler(service *services.NewsService, log *logger.Logger) *NewsHandler {
	return &NewsHandler{service: service, log: log}
}

type newsResponse struct {
	Success      bool             `json:"success"`
	FromCache    bool             `json:"fromCache"`
	IsFallback   bool             `json:"isFallback,omitempty"`
	CachedAt     *time.Time       `json:"cachedAt,omitempty"`
	Message      string           `json:"message,omitempty"`
	Articles     []models.Article `json:"articles"`
	TotalResults int              `json:"totalResults"`
	Page         int              `json:"page"`
	PageSize     int              `json:"pageSize"`
}

// GetNews handles GET /news.
func (h *NewsHandler) GetNews(c *gin.Context) {
	ctx := c.Request.Context()

	query := services.NewsQuery{
		Category: c.DefaultQuery("category", services.DefaultCategory),
		Language: c.DefaultQuery("language", services.DefaultLanguage),
		Q:        c.Query("q"),
		Page:     intQuery(c, "page", services.DefaultPage),
		PageSize: intQuery(c, "pageSize", services.DefaultPageSize),
	}

	result, err := h.service.GetNews(ctx, query)
	if err != nil {
		if errors.Is(err, services.ErrNewsUnavailable) {
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Success: false,
				Error:   err.Error(),
				Message: "Não foi possível carregar as notícias. Tente novamente em alguns minutos.",
			}, http.StatusServiceUnavailable)
			c.Abort()
			return
		}
		h.log.Errorw("Unexpected error fetching news", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Erro interno do servidor",
		}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	articles := result.Articles
	if articles == nil {
		articles = []models.Article{}
	}

	res.JsonResponse(c.Writer, newsResponse{
		Success:      true,
		FromCache:    result.FromCache,
		IsFallback:   result.IsFallback,
		CachedAt:     result.CachedAt,
		Message:      result.Message,
		Articles:     articles,
		TotalResults: result.TotalResults,
		Page:         result.Page,
		PageSize:     result.PageSize,
	}, http.StatusOK)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
