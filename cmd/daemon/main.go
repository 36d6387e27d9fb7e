package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-trader/internal/config"
	"ticket-trader/internal/database"
	"ticket-trader/internal/engine"
	"ticket-trader/internal/models"
	"ticket-trader/internal/notify"
	"ticket-trader/internal/services/platforms"

	"github.com/joho/godotenv"
)

var (
	interval = flag.Duration("interval", 2*time.Second, "queue poll interval")
	burst    = flag.Int("burst", 4, "max intents admitted per tick")
	dbURL    = flag.String("db", "", "database connection string (overrides DATABASE_URL)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}

	log.Printf("[daemon] starting (PID: %d)", os.Getpid())
	log.Printf("[daemon] poll interval: %v, burst: %d, max concurrent: %d",
		*interval, *burst, cfg.MaxConcurrentPurchases)

	var intentStore engine.IntentStore
	var calibStore engine.CalibrationStore
	if cfg.DatabaseURL != "" {
		db, err := database.Initialize(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[daemon] database init failed: %v", err)
		}
		intentStore = database.NewIntentStore(db)
		calibStore = database.NewCalibrationStore(db)
	} else {
		log.Println("[daemon] DATABASE_URL not set, running with in-memory store")
		intentStore = engine.NewMemoryStore()
	}

	registry := platforms.NewRegistry(cfg)
	log.Printf("[daemon] enabled platforms: %v", cfg.EnabledPlatforms())

	prefs := engine.StaticPreferences{Prefs: models.UserPreferences{
		MinScore:      70,
		MaxPrice:      500,
		MaxDailySpend: 2000,
	}}

	eng := engine.New(cfg, intentStore, calibStore, prefs, registry, notify.LogSink{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.RunWorker(ctx, eng, engine.WorkerConfig{Interval: *interval, Burst: *burst})

	log.Printf("[daemon] shutdown signal received, waiting for %d in-flight purchases", eng.InFlight())
	// In-flight executions run on detached contexts; give them a window to settle.
	deadline := time.After(cfg.PurchaseTimeout)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for eng.InFlight() > 0 {
		select {
		case <-deadline:
			log.Printf("[daemon] drain timeout, %d purchases still in flight", eng.InFlight())
			return
		case <-tick.C:
		}
	}
	log.Printf("[daemon] stopped")
}
