package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/gateway/maxipago"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/storage"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	cardGateway := maxipago.NewClient(
		cfg.Maxipago.BaseURL,
		cfg.Maxipago.MerchantID,
		cfg.Maxipago.MerchantKey,
		cfg.Maxipago.ProcessorID,
		time.Duration(cfg.Maxipago.TimeoutSeconds)*time.Second,
	)
	if cfg.Maxipago.MerchantID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := cardGateway.HealthCheck(ctx); err != nil {
			log.Printf("Card gateway health check failed: %v", err)
		}
		cancel()
	}

	invoiceGateway := asaas.NewClient(cfg.Asaas.BaseURL, cfg.Asaas.APIKey, cfg.Asaas.DueDateDays)
	if invoiceGateway.MockMode() {
		log.Println("Invoice gateway running in mock mode (no API key configured)")
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.UploadDir, cfg.Server.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	identity := service.NewIdentityResolver(db)
	orderService := service.NewOrderService(db, identity, eventPublisher, cfg.Server.PublicBaseURL)
	checkoutService := service.NewCheckoutService(db, identity, invoiceGateway, cardGateway, eventPublisher)
	webhookService := service.NewWebhookService(db, redisClient, eventPublisher)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Static("/uploads", cfg.Storage.UploadDir)

	handler := api.NewHandler(orderService, checkoutService, webhookService, fileStorage, redisClient, cfg.Asaas.WebhookSecret)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
