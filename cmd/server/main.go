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
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/handlers"
	applogger "github.com/lagostransit/crowdroutes-backend/internal/logger"
	"github.com/lagostransit/crowdroutes-backend/internal/middleware"
	"github.com/lagostransit/crowdroutes-backend/internal/services"
	"github.com/lagostransit/crowdroutes-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := applogger.New(cfg.Server, cfg.Logging)
	logger.Info("Starting CrowdRoutes backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

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
	locationRepo := database.NewLocationRepository(db)
	routeRepo := database.NewRouteRepository(db)
	reportRepo := database.NewReportRepository(db)
	reputationRepo := database.NewReputationRepository(db)
	suggestionRepo := database.NewSuggestionRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(db)
	reputationService := services.NewReputationService(reputationRepo, auditService, cfg.Reputation, logger)
	geoService := services.NewGeoService(locationRepo, cfg.Geo, logger)
	locationService := services.NewLocationService(locationRepo, geoService, reputationService, auditService, cfg.Reputation, logger)
	routeService := services.NewRouteService(routeRepo, locationRepo, reputationService, auditService, cfg.Reputation, logger)
	aggregatorService := services.NewAggregatorService(db, reportRepo, routeRepo, reputationService, auditService, cfg.Aggregation, cfg.Retention, logger)
	submissionGuard := services.NewSubmissionGuard(reportRepo, aggregatorService, auditService, cfg.Cooldown, logger)
	aggregatorService.SetGuard(submissionGuard)
	suggestionService := services.NewSuggestionService(suggestionRepo, routeService, reputationService, auditService, cfg.Reputation, logger)

	// Initialize and start cron service
	cronService := services.NewCronService(reportRepo, auditService, cfg.Retention, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Initialize handlers
	locationHandler := handlers.NewLocationHandler(locationService, geoService, logger)
	routeHandler := handlers.NewRouteHandler(routeService, logger)
	reportHandler := handlers.NewReportHandler(aggregatorService, submissionGuard, logger)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService, logger)
	contributorHandler := handlers.NewContributorHandler(reputationService, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Location routes
		locations := v1.Group("/locations")
		{
			// Public reads
			locations.GET("/nearby", locationHandler.Nearby)
			locations.GET("/search", locationHandler.Search)
			locations.GET("/:id", locationHandler.Get)

			// Creation accepts anonymous contributors at zero reputation
			locations.POST("", middleware.OptionalAuthMiddleware(jwtService), locationHandler.Create)
			locations.DELETE("/:id", middleware.AuthMiddleware(jwtService), locationHandler.Delete)
		}

		// Route routes
		routes := v1.Group("/routes")
		{
			routes.GET("", routeHandler.Search)
			routes.GET("/:id", routeHandler.Get)

			routesProtected := routes.Group("")
			routesProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				routesProtected.POST("", routeHandler.Create)
				routesProtected.PATCH("/:id", routeHandler.Update)
			}
		}

		// Fare report routes
		reports := v1.Group("/reports")
		{
			reports.GET("/:id", reportHandler.Get)

			// Anonymous reports are accepted at the lowest weight
			reports.POST("/fare", middleware.OptionalAuthMiddleware(jwtService), reportHandler.Submit)

			moderation := reports.Group("")
			moderation.Use(middleware.AuthMiddleware(jwtService))
			{
				moderation.POST("/:id/flag", reportHandler.Flag)
				moderation.POST("/:id/unflag", reportHandler.Unflag)
				moderation.POST("/:id/verify", reportHandler.Verify)
			}
		}

		// Suggestion routes (all identified)
		suggestions := v1.Group("/suggestions")
		suggestions.Use(middleware.AuthMiddleware(jwtService))
		{
			suggestions.POST("", suggestionHandler.Submit)
			suggestions.GET("/pending", suggestionHandler.ListPending)
			suggestions.GET("/:id", suggestionHandler.Get)
			suggestions.POST("/:id/review", suggestionHandler.Review)
		}

		// Contributor reputation routes
		contributors := v1.Group("/contributors")
		{
			contributors.GET("/:id/reputation", contributorHandler.GetScore)
			contributors.GET("/:id/reputation/history", contributorHandler.GetHistory)
		}

		// Admin cron routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		{
			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
			admin.POST("/cron/retention", func(c *gin.Context) {
				cronService.RunRetentionNow()
				c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Retention sweep triggered"})
			})
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
	cronService.Stop()

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

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if actor := middleware.GetActor(c); actor != nil {
			fields["actor_id"] = actor.ID
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
func healthCheckHandler(db database.DB) gin.HandlerFunc {
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
