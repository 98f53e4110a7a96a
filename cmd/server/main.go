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
	"github.com/redis/go-redis/v9"
	"github.com/trade-assistant/internal/broker/fyers"
	"github.com/trade-assistant/internal/config"
	"github.com/trade-assistant/internal/handler"
	"github.com/trade-assistant/internal/middleware"
	"github.com/trade-assistant/internal/models"
	"github.com/trade-assistant/internal/repository"
	"github.com/trade-assistant/internal/risk"
	"github.com/trade-assistant/internal/service"
	"github.com/trade-assistant/internal/worker"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize logging
	if err := middleware.InitLogger("logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis
	rdb := initRedis(cfg)

	// Auto migrate database
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	// Initialize broker gateway
	gateway := fyers.NewClient(cfg.Broker.ClientID, cfg.Broker.AccessToken, cfg.Broker.BaseURL)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT)
	quoteService := service.NewQuoteService(gateway, rdb)
	tradingService := service.NewTradingService(
		db,
		portfolioRepo,
		positionRepo,
		historyRepo,
		risk.Limits{
			MaxActivePositions: cfg.Trading.MaxActivePositions,
			MaxRiskPct:         cfg.Trading.MaxRiskPct,
		},
	)
	monitorService := service.NewMonitorService(positionRepo, tradingService, quoteService)
	scannerService := service.NewScannerService(gateway, quoteService, rdb)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	tradingHandler := handler.NewTradingHandler(tradingService, monitorService)
	scanHandler := handler.NewScanHandler(scannerService)

	// Create Gin router
	router := gin.Default()

	// Add request logging middleware (logs all requests with error details)
	router.Use(middleware.RequestLoggerMiddleware())

	// Add CORS middleware
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler.RegisterRoutes(v1)

		// Trading and scan routes (protected)
		authMiddleware := middleware.AuthMiddleware(authService)
		tradingHandler.RegisterRoutes(v1, authMiddleware)
		scanHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Start streaming quote feed if enabled; REST quotes remain the fallback
	var stream *fyers.Stream
	if cfg.Broker.EnableStream {
		stream = fyers.NewStream(cfg.Broker.ClientID, cfg.Broker.AccessToken, cfg.Broker.StreamURL)
		stream.SetSubscriber(quoteService)
		if err := stream.Connect(context.Background()); err != nil {
			log.Printf("Warning: quote stream unavailable, using REST quotes: %v", err)
		} else {
			symbols := append([]string{}, service.Nifty50Symbols...)
			symbols = append(symbols, service.IndexSymbols...)
			if err := stream.Subscribe(symbols); err != nil {
				log.Printf("Warning: quote stream subscribe failed: %v", err)
			}
		}
	}

	// Start position monitor worker
	monitorWorker := worker.NewMonitorWorker(
		monitorService,
		time.Duration(cfg.Trading.MonitorIntervalSec)*time.Second,
	)
	go monitorWorker.Start()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
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

	// Stop background workers
	monitorWorker.Stop()
	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Printf("Error closing quote stream: %v", err)
		}
	}

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
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

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Position{},
		&models.TradeRecord{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
