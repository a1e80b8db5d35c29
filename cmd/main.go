package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"squad-predictions/internal/auth"
	"squad-predictions/internal/clients"
	"squad-predictions/internal/config"
	"squad-predictions/internal/database"
	"squad-predictions/internal/handlers"
	"squad-predictions/internal/jobs"
	"squad-predictions/internal/repository"
	"squad-predictions/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// External collaborators
	progressTracker := clients.NewHTTPProgressTracker(
		cfg.Collaborators.ProgressTrackerURL,
		cfg.Collaborators.RequestTimeout,
	)
	squadDirectory := clients.NewHTTPSquadDirectory(
		cfg.Collaborators.SquadDirectoryURL,
		cfg.Collaborators.RequestTimeout,
	)

	// Initialize repository and services
	repo := repository.NewRepository(db)
	walletService := services.NewWalletService(db)
	eligibilityService := services.NewEligibilityService(repo, progressTracker, squadDirectory, cfg.Market)
	moderationService := services.NewModerationService(db, repo, walletService, cfg.Market.ReportThreshold)
	ledgerService := services.NewLedgerService(db, repo, walletService, progressTracker)
	pollService := services.NewPollService(db, repo, eligibilityService, moderationService, squadDirectory, cfg.Market)

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(repo, pollService, ledgerService, moderationService, eligibilityService)
	adminHandler := handlers.NewAdminHandler(repo, pollService, moderationService)

	// Start deadline sweeper job
	sweeper := jobs.NewDeadlineSweeper(repo, cfg.Market.SweepInterval)
	go sweeper.Start()
	defer sweeper.Stop()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public poll routes
	router.GET("/api/polls", pollHandler.ListPolls)
	router.GET("/api/polls/:id", pollHandler.GetPoll)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/eligibility", pollHandler.GetEligibility)
		api.GET("/squads/:squadId/quota", pollHandler.GetSquadQuota)

		api.POST("/polls", pollHandler.CreatePoll)
		api.POST("/polls/:id/participate", pollHandler.Participate)
		api.POST("/polls/:id/report", pollHandler.Report)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.POST("/polls/:id/moderate", adminHandler.ModeratePoll)
		admin.PATCH("/polls/:id", adminHandler.UpdatePoll)
		admin.DELETE("/polls/:id", adminHandler.DeletePoll)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
