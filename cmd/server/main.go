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

	"github.com/QODOHUB/ayami-storefront/config"
	"github.com/QODOHUB/ayami-storefront/internal/api"
	"github.com/QODOHUB/ayami-storefront/internal/broker"
	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/payment"
	"github.com/QODOHUB/ayami-storefront/internal/redisclient"
	"github.com/QODOHUB/ayami-storefront/internal/service"
	"github.com/QODOHUB/ayami-storefront/internal/store"
	"github.com/QODOHUB/ayami-storefront/internal/util"
	"github.com/QODOHUB/ayami-storefront/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("ayami-storefront", cfg.Observ.JaegerEndpoint)
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

	posClient := iiko.New(cfg.Iiko)
	paymentGateway := payment.New(cfg.Payment)

	catalogService := service.NewCatalogService(db, redisClient, posClient)
	cartService := service.NewCartService(db, db, catalogService)
	customerService := service.NewCustomerService(posClient, cfg.Iiko.DefaultOrganizationID)
	finalizer := service.NewOrderFinalizer(
		db, db, db, redisClient, redisClient, catalogService, posClient, eventPublisher)
	checkoutService := service.NewCheckoutService(
		redisClient, cartService, db, catalogService, posClient, paymentGateway,
		finalizer, cfg.Checkout, cfg.Payment.ReturnURL, cfg.Iiko.DeliveryZonesMapURL)
	reconciler := service.NewReconciler(db, posClient, eventPublisher, cfg.Iiko.MaxRetries)

	// Warm the mirror so the first request does not pay for a full sync.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := catalogService.EnsureFresh(ctx); err != nil {
		log.Printf("Initial catalog sync failed: %v", err)
	}
	cancel()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	reconciliationWorker := worker.NewReconciliationWorker(consumer, reconciler)
	go func() {
		if err := reconciliationWorker.Start(workerCtx); err != nil {
			log.Printf("Reconciliation worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(catalogService, cartService, checkoutService, customerService, db)
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

	workerCancel()
	reconciliationWorker.Stop()

	log.Println("Server exited")
}
