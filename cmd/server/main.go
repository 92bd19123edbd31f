package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/api"
	"github.com/confpool/confidence-pool/internal/api/handlers"
	"github.com/confpool/confidence-pool/internal/api/middleware"
	"github.com/confpool/confidence-pool/internal/providers"
	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/config"
	"github.com/confpool/confidence-pool/pkg/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	logger := logrus.StandardLogger()
	if cfg.IsDevelopment() {
		logger.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// The reference timezone every lock decision is made in
	loc, err := time.LoadLocation(cfg.ReferenceTimezone)
	if err != nil {
		logrus.Fatalf("Failed to load reference timezone %q: %v", cfg.ReferenceTimezone, err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Shared infrastructure
	cacheService := services.NewCacheService(redisClient)
	breaker := services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, 30*time.Second, logger)

	hub := services.NewLiveScoreHub()
	go hub.Run()

	// Core domain services
	lock := services.NewGameLockEvaluator(loc)
	resolver := services.NewWeekResolver(lock)
	schedule := services.NewScheduleService(db, logger)

	scoreboard := providers.NewScoreboardClient(
		cfg.ScoreboardBaseURL,
		cfg.ScoreboardTimeout,
		cfg.ScoreboardRateLimit,
		cfg.ScoreboardCacheTTL,
		cacheService,
		breaker,
		logger,
	)
	scoreSync := services.NewScoreSyncService(db, cacheService, scoreboard, hub, lock, logger)
	poller := services.NewScoreUpdatePoller(schedule, resolver, scoreSync, cfg.Season, cfg.ScoreSyncTimeout, logger)

	scheduler := services.NewLiveWindowScheduler(schedule, poller.RunCycle, services.SchedulerConfig{
		Season:         cfg.Season,
		PreRoll:        cfg.PreRollMargin,
		PollInterval:   cfg.LivePollInterval,
		SafetyInterval: cfg.SafetyNetInterval,
		Backoff:        cfg.EvaluationBackoff,
	}, logger)
	if cfg.EnableLiveMonitoring {
		if err := scheduler.Start(); err != nil {
			logrus.Fatalf("Failed to start live window scheduler: %v", err)
		}
	}
	defer scheduler.Stop()

	// Reminder stack
	var smsService services.SMSService
	switch cfg.SMSProvider {
	case "twilio":
		smsService = services.NewTwilioSMSService(
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			cfg.TwilioFromNumber,
			breaker,
			services.NewSMSRateLimiter(3, time.Hour),
		)
	default:
		smsService = services.NewMockSMSService()
	}

	reminders := services.NewReminderService(db, cacheService, smsService, lock, cfg.ReminderInterval, logger)
	if cfg.EnableReminders {
		if err := reminders.Start(); err != nil {
			logrus.Errorf("Failed to start reminder service: %v", err)
		}
		defer reminders.Stop()
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Health probes
	healthHandler := handlers.NewHealthHandler(db, cacheService, scheduler)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	// Setup API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, db, cacheService, cfg, lock, schedule, resolver, scheduler, logger)

	// Live score socket at root level (not under /api/v1)
	wsHandler := handlers.NewWebSocketHandler(hub)
	router.GET("/ws", middleware.OptionalAuth(cfg.JWTSecret), wsHandler.HandleWebSocket)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
