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
	"github.com/robfig/cron/v3"

	"talktime/internal/auth"
	"talktime/internal/config"
	"talktime/internal/database"
	"talktime/internal/handlers"
	"talktime/internal/hub"
	"talktime/internal/jobs"
	"talktime/internal/repository"
	"talktime/internal/services"
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

	// Initialize repository and broadcast hub
	repo := repository.NewRepository(database.GetDB())
	broadcastHub := hub.NewHub()

	// Initialize services
	ledgerService := services.NewLedgerService(repo)
	badgeService := services.NewBadgeService(repo)
	presenceService := services.NewPresenceService(repo)
	callService := services.NewCallService(repo, ledgerService, badgeService, presenceService, broadcastHub)

	// Initialize handlers
	callHandler := handlers.NewCallHandler(callService)
	presenceHandler := handlers.NewPresenceHandler(presenceService, cfg.Billing.PresenceStaleAfter)
	badgeHandler := handlers.NewBadgeHandler(badgeService)
	walletHandler := handlers.NewWalletHandler(ledgerService)
	wsHandler := handlers.NewWSHandler(broadcastHub)

	// Start billing ticker
	billingTicker := jobs.NewBillingTicker(callService, cfg.Billing.TickInterval)
	go billingTicker.Start()
	log.Println("Billing ticker started")

	// Start presence cleanup job
	presenceCleanup := jobs.NewPresenceCleanup(
		presenceService,
		callService,
		cfg.Billing.CleanupInterval,
		cfg.Billing.PresenceStaleAfter,
		cfg.Billing.CallStalledAfter,
	)
	go presenceCleanup.Start()
	log.Println("Presence cleanup job started")

	// Daily badge assignment
	badgeCron := cron.New()
	if _, err := badgeCron.AddFunc(cfg.Billing.BadgeCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := badgeService.AssignBadgesForDate(ctx, time.Now()); err != nil {
			log.Printf("Badge assignment failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule badge assignment: %v", err)
	}
	badgeCron.Start()
	log.Printf("Badge assignment scheduled (%s)", cfg.Billing.BadgeCronSpec)

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

	// Public rate table
	router.GET("/api/calls/rates", callHandler.GetRates)

	// Real-time event stream (protected)
	ws := router.Group("/ws")
	ws.Use(auth.AuthMiddleware())
	{
		ws.GET("", wsHandler.Subscribe)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Call endpoints
		api.POST("/calls", callHandler.StartCall)
		api.GET("/calls/ongoing", callHandler.GetOngoing)
		api.GET("/calls/history", callHandler.GetHistory)
		api.POST("/calls/:id/end", callHandler.EndCall)
		api.POST("/calls/:id/bill", callHandler.BillMinute)

		// Presence endpoints
		api.GET("/presence/:user_id", presenceHandler.GetStatus)
		api.POST("/presence/heartbeat", presenceHandler.Heartbeat)

		// Badge endpoints
		api.GET("/badges/current", badgeHandler.GetCurrentBadge)
		api.GET("/badges/history", badgeHandler.GetHistory)

		// Wallet endpoints
		api.GET("/wallet", walletHandler.GetWallet)
		api.GET("/wallet/transactions", walletHandler.GetTransactions)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(auth.AdminMiddleware())
	{
		admin.POST("/calls/:id/emergency-end", callHandler.EmergencyEnd)
		admin.POST("/presence/cleanup", presenceHandler.Cleanup)
		admin.POST("/badges/assign", badgeHandler.AssignBadges)
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

	billingTicker.Stop()
	presenceCleanup.Stop()
	badgeCron.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
