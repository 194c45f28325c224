package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/config"
	"github.com/rwandabus/booking-api/internal/database"
	"github.com/rwandabus/booking-api/internal/handlers"
	"github.com/rwandabus/booking-api/internal/middleware"
	"github.com/rwandabus/booking-api/internal/services"
	"github.com/rwandabus/booking-api/pkg/jwt"
	"github.com/rwandabus/booking-api/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting RwandaBus Booking API")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	scheduleRepo := database.NewScheduleRepository(db)
	seatInventory := database.NewSeatInventoryRepository(db)
	reservationRepo := database.NewReservationRepository(db)
	bookingRepo := database.NewBookingRepository(db)

	// Initialize SMS gateway
	var smsGateway sms.Gateway
	if cfg.SMS.Mode == "dev" {
		logger.Info("SMS gateway in dev mode (messages logged, not sent)")
		smsGateway = sms.NewDevGateway(logger)
	} else {
		logger.Info("Initializing SMS gateway...")
		smsGateway = sms.NewURLGateway(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.SenderID)
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	notifier := services.NewSMSNotificationService(smsGateway, logger)
	paymentGateway := services.NewMockPaymentGateway(cfg.Payment, logger)
	scheduleService := services.NewScheduleService(scheduleRepo, seatInventory, logger)
	reservationService := services.NewReservationService(seatInventory, reservationRepo, scheduleRepo, cfg.Booking.HoldWindow, logger)
	lifecycleService := services.NewBookingLifecycleService(bookingRepo, scheduleRepo, seatInventory, cfg.Booking, logger)
	orchestrator := services.NewBookingOrchestratorService(
		reservationService,
		lifecycleService,
		bookingRepo,
		scheduleRepo,
		paymentGateway,
		notifier,
		cfg.Booking,
		logger,
	)

	// Start background workers
	reaper := services.NewHoldReaperService(bookingRepo, seatInventory, lifecycleService, cfg.Booking.ReaperInterval, logger)
	reaper.Start()

	completionService := services.NewScheduleCompletionService(scheduleRepo, bookingRepo, reservationService, lifecycleService, logger)
	if err := completionService.Start(); err != nil {
		logger.Fatalf("Failed to start schedule completion cron: %v", err)
	}

	// Initialize handlers
	scheduleHandler := handlers.NewScheduleHandler(scheduleService, logger)
	bookingHandler := handlers.NewBookingHandler(orchestrator, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Schedule catalog (public)
		v1.GET("/schedules", scheduleHandler.ListSchedules)
		v1.GET("/schedules/:id", scheduleHandler.GetSchedule)
		v1.GET("/schedules/:id/availability", scheduleHandler.GetAvailability)

		// Booking creation supports both registered users and guests
		v1.POST("/bookings", middleware.OptionalAuthMiddleware(jwtService), bookingHandler.CreateBooking)

		// Guest booking lookup by reference (public)
		v1.GET("/bookings/reference/:reference", bookingHandler.GetBookingByReference)

		// Booking management (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.GET("/:id/review-eligibility", bookingHandler.ReviewEligibility)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		my := v1.Group("/my")
		my.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			my.GET("/bookings", bookingHandler.ListMyBookings)
		}

		// Operator routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger), middleware.RequireRole(middleware.AdminRole))
		{
			admin.POST("/schedules", scheduleHandler.CreateSchedule)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	reaper.Stop()
	completionService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
