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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ibkr-relay/internal/config"
	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/gateway/ibgw"
	"github.com/ibkr-relay/internal/gateway/sim"
	"github.com/ibkr-relay/internal/handler"
	"github.com/ibkr-relay/internal/middleware"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/repository"
	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/internal/worker"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Dir != "" {
		if err := middleware.InitLogger(cfg.Log.Dir); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)

	// Paper mode runs entirely in process: simulated gateway, in-memory
	// journal, no redis. Live mode needs postgres, redis and the bridge.
	var (
		journal    service.TradeJournal
		gw         gateway.OrderGateway
		rdb        *redis.Client
		gwClient   *ibgw.Client
		simGateway *sim.Gateway
	)

	ctx := context.Background()

	if cfg.Gateway.Mode == "sim" {
		log.Printf("Starting in sim mode: in-memory journal, simulated gateway")
		journal = repository.NewMemoryJournal()
		simGateway = sim.New()
		gw = simGateway
	} else {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := db.AutoMigrate(&models.Trade{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		journal = repository.NewTradeRepository(db)

		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		gwClient = ibgw.NewClient(cfg.Gateway)
		if err := gwClient.Connect(ctx); err != nil {
			log.Fatalf("Failed to connect to gateway: %v", err)
		}
		gw = gwClient
	}

	// Services
	authService := service.NewAuthService(cfg.Auth)
	dashboardService := service.NewDashboardService(gw, rdb)
	signalService := service.NewSignalService(journal, gw, dashboardService)

	// Workers
	fillWorker := worker.NewFillWorker(signalService, gw.Events())
	go fillWorker.Start()

	snapshotWorker := worker.NewSnapshotWorker(dashboardService,
		time.Duration(cfg.Dashboard.RefreshSeconds)*time.Second)
	go snapshotWorker.Start()

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	webhookHandler := handler.NewWebhookHandler(signalService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, signalService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"mode":       cfg.Gateway.Mode,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Signal intake, optionally HMAC-signed.
	webhook := router.Group("/", middleware.WebhookAuthMiddleware(cfg.Auth.WebhookSecret))
	webhookHandler.RegisterRoutes(webhook)

	// Dashboard API
	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1)
		dashboardHandler.RegisterRoutes(v1, middleware.AuthMiddleware(authService))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	snapshotWorker.Stop()

	// Closing the gateway ends the event stream, which stops the fill
	// worker once the last buffered event is reconciled.
	if gwClient != nil {
		gwClient.Close()
	}
	if simGateway != nil {
		simGateway.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}

	log.Println("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
