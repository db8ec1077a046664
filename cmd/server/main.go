package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lupafinanceira/backend/internal/app"
	"github.com/lupafinanceira/backend/internal/config"
	"github.com/lupafinanceira/backend/internal/db"
	"github.com/lupafinanceira/backend/internal/http/routes"
	"github.com/lupafinanceira/backend/internal/kafka"
	"github.com/lupafinanceira/backend/internal/mercadopago"
	"github.com/lupafinanceira/backend/internal/metrics"
	"github.com/lupafinanceira/backend/internal/newsapi"
	"github.com/lupafinanceira/backend/internal/repository"
	"github.com/lupafinanceira/backend/internal/services"
	"github.com/lupafinanceira/backend/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	log.Infow("Lupa Financeira backend starting up...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := db.RunMigrations(cfg.Database.DSN, log); err != nil {
		log.Fatalw("Failed to run database migrations", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := db.NewClient(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer dbClient.Close()

	subRepo := repository.NewPostgresSubscriptionRepository(dbClient.Pool(), log)
	cacheRepo := repository.NewPostgresNewsCacheRepository(dbClient.Pool(), log)

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	newsMetrics := metrics.NewNewsMetrics(registry)

	// The service tolerates a nil producer; payment events are then only
	// logged, not published.
	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Warnw("Failed to connect Kafka producer, continuing without event publishing", "error", err)
			producer = nil
		} else {
			defer producer.Close()
		}
	} else {
		log.Warnw("KAFKA_BROKERS not set, payment events will not be published")
	}

	gateway := mercadopago.NewClient(cfg.MercadoPago.AccessToken, log)
	newsClient := newsapi.NewClient(cfg.NewsAPI.Key, log)

	paymentService := services.NewPaymentService(subRepo, gateway, producer, paymentMetrics, log)
	newsService := services.NewNewsService(cacheRepo, newsClient, newsMetrics, log)

	application := app.NewApp(cfg, paymentService, newsService, registry, log)

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("HTTP server listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Infow("Server exited")
}
