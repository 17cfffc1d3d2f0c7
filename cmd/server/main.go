package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/autovoyage/service-rental/internal/application"
	"github.com/autovoyage/service-rental/internal/config"
	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	rentalEvents "github.com/autovoyage/service-rental/internal/events"
	"github.com/autovoyage/service-rental/internal/handler"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/autovoyage/service-rental/internal/platform/database"
	"github.com/autovoyage/service-rental/internal/platform/health"
	"github.com/autovoyage/service-rental/internal/platform/kafka"
	"github.com/autovoyage/service-rental/internal/platform/logger"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/repository"
	"github.com/autovoyage/service-rental/migrations"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "service-rental"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName, logger.Options{FilePath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(&repository.CarModel{}, &repository.BookingModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), migrations.FS, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize token verifier
	var verifier auth.TokenVerifier
	if cfg.AuthConfig.FirebaseProjectID != "" {
		verifier = auth.NewFirebaseVerifier(cfg.AuthConfig.FirebaseProjectID)
		log.Info("using firebase token verification", zap.String("project", cfg.AuthConfig.FirebaseProjectID))
	} else {
		verifier = auth.NewHMACVerifier(cfg.AuthConfig.DevSecret)
		log.Warn("using development HMAC token verification")
	}
	cookie := middleware.CookieSettings{
		Name:   cfg.AuthConfig.CookieName,
		MaxAge: int(cfg.AuthConfig.CookieMaxAge.Seconds()),
		Secure: cfg.IsProduction(),
	}

	// Initialize event publisher
	var publisher application.EventPublisher = application.NoopEventPublisher{}
	if cfg.KafkaConfig.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = application.NewKafkaEventPublisher(kafkaProducer, log)
	} else {
		log.Warn("kafka brokers not configured, events will not be published")
	}

	// Initialize rate limiter store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid redis url", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}
	limits := middleware.NewRateLimiterFactory(redisClient, log)

	// Initialize repositories
	carRepo := repository.NewGormCarRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)

	// Initialize application services
	carService := application.NewCarService(carRepo, publisher, log)
	bookingService := application.NewBookingService(
		bookingRepo,
		carRepo,
		bookingDomain.NewDailyRatePricingStrategy(),
		publisher,
		log,
	)

	// Initialize and start rental event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.KafkaConfig.Enabled() {
		groupID := cfg.KafkaConfig.GroupPrefix + "rental-service"
		rentalConsumer := rentalEvents.NewRentalEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			bookingService,
			log,
		)
		defer func() { _ = rentalConsumer.Close() }()

		go func() {
			log.Info("starting rental event consumer")
			if err := rentalConsumer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("rental event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "AutoVoyage Server Running at %s", strings.TrimPrefix(cfg.Port, ":"))
	})

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	authMW := middleware.AuthMiddleware(verifier, cookie)
	handler.NewAuthHandler(verifier, cookie, log).
		RegisterRoutes(&router.RouterGroup, authMW, limits.Limit("login", cfg.RateLimits.Login))
	handler.NewCarHandler(carService).
		RegisterRoutes(&router.RouterGroup, authMW)
	handler.NewBookingHandler(bookingService).
		RegisterRoutes(&router.RouterGroup, authMW, limits.Limit("bookings", cfg.RateLimits.Bookings))
	handler.NewOwnerBookingHandler(bookingService).
		RegisterRoutes(&router.RouterGroup, authMW)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
