package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lupafinanceira/backend/internal/app"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// SetupRoutes configures all API routes on the Gin router.
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	// Browsers preflight every checkout request; OPTIONS must answer 200
	// with no body.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:              []string{"Authorization", "Content-Type", "X-Client-Info", "ApiKey"},
		OptionsResponseStatusCode: http.StatusOK,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		payments := api.Group("/payments")
		{
			payments.POST("", app.PaymentHandler.CreatePayment)
			payments.GET("/public-key", app.PaymentHandler.GetPublicKey)
		}

		api.POST("/webhooks/mercadopago", app.WebhookHandler.HandleWebhook)

		api.GET("/news", app.NewsHandler.GetNews)
	}

	log.Infow("API routes successfully configured")
}
