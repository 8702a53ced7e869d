package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/config"
	"chat-relay/internal/deploy"
	"chat-relay/internal/handlers"
	"chat-relay/internal/logging"
	"chat-relay/internal/observability"
	"chat-relay/internal/rabbitmq"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.InitLogger(cfg.LogLevel)
	if err := cfg.ValidateDeployer(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	deployer, err := deploy.NewDeployer(cfg.Deploy, deploy.ExecRunner{Logger: logger}, logger)
	if err != nil {
		logger.Error("invalid deploy commands", "error", err)
		os.Exit(1)
	}
	webhook := handlers.NewWebhookHandler(cfg.WebhookSecret, deployer)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestID())
	router.Use(logging.RequestLogger())
	router.Use(observability.HTTPMetricsMiddleware())

	router.POST("/webhook", webhook.Handle)
	router.GET("/healthz", handlers.Health(nil))
	router.GET("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + cfg.WebhookPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("deploy listener listening", "port", cfg.WebhookPort, "dir", cfg.Deploy.Dir, "branch", cfg.Deploy.Branch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// A deploy in flight keeps its request open; give it the full deploy budget.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Deploy.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
}
