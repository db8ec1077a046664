package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lupafinanceira/backend/internal/config"
	"github.com/lupafinanceira/backend/internal/http/handlers"
	"github.com/lupafinanceira/backend/internal/middleware"
	"github.com/lupafinanceira/backend/internal/services"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// App is the container for all application components.
type App struct {
	Config           *config.Config
	PaymentService   *services.PaymentService
	NewsService      *services.NewsService
	PaymentHandler   *handlers.PaymentHandler
	WebhookHandler   *handlers.WebhookHandler
	NewsHandler      *handlers.NewsHandler
	LoggerMiddleware gin.HandlerFunc
	Registry         *prometheus.Registry
	Logger           *logger.Logger
}

// NewApp creates and initializes a new application instance.
func NewApp(
	cfg *config.Config,
	paymentService *services.PaymentService,
	newsService *services.NewsService,
	registry *prometheus.Registry,
	log *logger.Logger,
) *App {
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.MercadoPago.PublicKey, log)
	webhookHandler := handlers.NewWebhookHandler(paymentService, log)
	newsHandler := handlers.NewNewsHandler(newsService, log)

	loggerMiddleware := middleware.RequestLogger(log)

	return &App{
		Config:           cfg,
		PaymentService:   paymentService,
		NewsService:      newsService,
		PaymentHandler:   paymentHandler,
		WebhookHandler:   webhookHandler,
		NewsHandler:      newsHandler,
		LoggerMiddleware: loggerMiddleware,
		Registry:         registry,
		Logger:           log,
	}
}
