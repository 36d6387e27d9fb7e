package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ticket-trader/internal/api"
	"ticket-trader/internal/config"
	"ticket-trader/internal/database"
	"ticket-trader/internal/engine"
	"ticket-trader/internal/models"
	"ticket-trader/internal/notify"
	"ticket-trader/internal/services/platforms"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize stores: MySQL when configured, in-memory otherwise
	var intentStore engine.IntentStore
	var calibStore engine.CalibrationStore
	if cfg.DatabaseURL != "" {
		db, err := database.Initialize(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		intentStore = database.NewIntentStore(db)
		calibStore = database.NewCalibrationStore(db)
	} else {
		log.Println("DATABASE_URL not set, running with in-memory store")
		intentStore = engine.NewMemoryStore()
	}

	// Platform adapters
	registry := platforms.NewRegistry(cfg)
	log.Printf("Enabled platforms: %v", cfg.EnabledPlatforms())

	// Engine events go to the log and to connected websocket clients
	hub := api.NewHub()
	sink := notify.Fanout{notify.LogSink{}, hub}

	prefs := engine.StaticPreferences{Prefs: models.UserPreferences{
		MinScore:      70,
		MaxPrice:      500,
		MaxDailySpend: 2000,
	}}

	eng := engine.New(cfg, intentStore, calibStore, prefs, registry, sink)

	// Background worker drains the queue while the server runs
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go engine.RunWorker(ctx, eng, engine.DefaultWorkerConfig())

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "in_flight": eng.InFlight()})
	})

	// Event stream
	r.GET("/ws", hub.Serve)

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, eng)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}
