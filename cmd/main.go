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
	"go.uber.org/zap"

	"blockforge/internal/auth"
	"blockforge/internal/config"
	"blockforge/internal/database"
	"blockforge/internal/handlers"
	"blockforge/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations and seed the achievement catalog
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Initialize services
	ledgerService := services.NewLedgerService(db, logger)
	referralService := services.NewReferralService(db, logger, ledgerService, services.ReferralBonuses{
		Signup:    cfg.Rewards.ReferralSignupBonus,
		FirstTask: cfg.Rewards.ReferralFirstTaskBonus,
	})
	taskService := services.NewTaskService(db, logger, ledgerService, referralService)
	achievementService := services.NewAchievementService(db, logger, ledgerService)

	curve := make(services.RewardCurve, 0, len(cfg.Rewards.StreakCurve))
	for _, point := range cfg.Rewards.StreakCurve {
		curve = append(curve, services.StreakTier{MinStreak: point.MinStreak, Credits: point.Credits})
	}
	loginService := services.NewLoginService(db, logger, ledgerService, achievementService, curve)
	userService := services.NewUserService(db)

	// Initialize handlers
	creditsHandler := handlers.NewCreditsHandler(ledgerService, logger)
	taskHandler := handlers.NewTaskHandler(taskService, logger)
	achievementHandler := handlers.NewAchievementHandler(achievementService, logger)
	referralHandler := handlers.NewReferralHandler(referralService, logger)
	loginHandler := handlers.NewLoginHandler(loginService, logger)
	userHandler := handlers.NewUserHandler(userService)

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000", // Local development
		"http://localhost:5173", // Vite dev server
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

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		api.GET("/user/profile", userHandler.GetProfile)

		// Credits endpoints
		api.GET("/credits/balance", creditsHandler.GetBalance)
		api.GET("/credits/transactions", creditsHandler.GetTransactions)
		api.GET("/credits/can-afford", creditsHandler.CanAfford)

		// Task endpoints
		api.POST("/tasks", taskHandler.StartTask)
		api.GET("/tasks/:id", taskHandler.GetTask)
		api.POST("/tasks/:id/charge", taskHandler.ChargeTask)
		api.POST("/tasks/:id/complete", taskHandler.CompleteTask)

		// Achievement endpoints
		api.GET("/achievements", achievementHandler.GetAchievements)
		api.POST("/achievements/evaluate", achievementHandler.Evaluate)

		// Referral endpoints
		api.GET("/referral/code", referralHandler.GetReferralCode)
		api.POST("/referral/apply", referralHandler.ApplyReferralCode)
		api.GET("/referral/summary", referralHandler.GetSummary)

		// Daily login endpoints
		api.POST("/login/daily", loginHandler.DailyLogin)
		api.GET("/login/history", loginHandler.GetHistory)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
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
