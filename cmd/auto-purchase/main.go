package main

import (
	"context"
	"flag"
	"log"
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
	dryRun     = flag.Bool("dry-run", true, "evaluate and compare only, do not enqueue (default true)")
	dbURL      = flag.String("db", "", "database connection string (overrides DATABASE_URL)")
	listingID  = flag.String("listing", "", "listing id to buy")
	platform   = flag.String("platform", "stubhub", "platform the listing lives on")
	eventTitle = flag.String("event", "", "event title, used for cross-platform comparison")
	price      = flag.Float64("price", 0, "listed price per order")
	quantity   = flag.Int("quantity", 1, "tickets to buy")
	maxPrice   = flag.Float64("max-price", 0, "ceiling price, defaults to listed price +10%")
	demand     = flag.Float64("demand", 5, "demand score 0-10")
	eventIn    = flag.Duration("event-in", 7*24*time.Hour, "time until the event starts")
	userID     = flag.String("user", "cli", "user id to enqueue under")
	priority   = flag.String("priority", models.PriorityNormal, "queue priority: low/normal/high/urgent")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *listingID == "" || *price <= 0 {
		log.Fatal("[auto-purchase] -listing and -price are required")
	}
	if *maxPrice <= 0 {
		*maxPrice = *price * 1.10
	}

	log.Printf("[auto-purchase] ==================== start ====================")
	log.Printf("[auto-purchase] mode: %s", runModeText())
	log.Printf("[auto-purchase] listing %s on %s, %d ticket(s) at %.2f (ceiling %.2f)",
		*listingID, *platform, *quantity, *price, *maxPrice)

	cfg := config.Load()
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}
	cfg.EngineEnabled = true

	var intentStore engine.IntentStore
	var calibStore engine.CalibrationStore
	if cfg.DatabaseURL != "" {
		db, err := database.Initialize(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[auto-purchase] database init failed: %v", err)
		}
		intentStore = database.NewIntentStore(db)
		calibStore = database.NewCalibrationStore(db)
	} else {
		intentStore = engine.NewMemoryStore()
	}

	registry := platforms.NewRegistry(cfg)
	prefs := engine.StaticPreferences{Prefs: models.UserPreferences{
		MinScore:      0,
		MaxPrice:      *maxPrice,
		MaxDailySpend: *maxPrice * float64(*quantity) * 2,
	}}
	eng := engine.New(cfg, intentStore, calibStore, prefs, registry, notify.LogSink{})

	ctx := context.Background()

	listing := models.ListingSnapshot{
		ListingID:   *listingID,
		Platform:    *platform,
		EventTitle:  *eventTitle,
		Price:       *price,
		Quantity:    *quantity,
		EventTime:   time.Now().Add(*eventIn),
		DemandScore: *demand,
		CapturedAt:  time.Now(),
	}

	decision, err := eng.EvaluateDecision(ctx, listing, *userID)
	if err != nil {
		log.Fatalf("[auto-purchase] evaluation failed: %v", err)
	}
	log.Printf("[decision] score: %.1f, action: %s, eligible: %v", decision.Score, decision.Action, decision.Eligible)
	for _, r := range decision.Reasons {
		log.Printf("[decision]   - %s", r)
	}

	if *eventTitle != "" {
		result := eng.CompareQuotes(ctx, platforms.EventCriteria{
			EventTitle:  *eventTitle,
			EventTime:   listing.EventTime,
			MaxPrice:    *maxPrice,
			MinQuantity: *quantity,
		}, nil)
		log.Printf("[compare] %d quote(s), %d platform(s) failed", len(result.Quotes), len(result.FailedPlatforms))
		for _, q := range result.Quotes {
			log.Printf("[compare]   %s %s: %.2f + %.2f fees = %.2f",
				q.Platform, q.ListingID, q.Price, q.Fees, q.EffectiveTotal())
		}
		if best := result.Best(); best != nil && best.Platform != *platform {
			log.Printf("[compare] cheaper option on %s (%.2f effective)", best.Platform, best.EffectiveTotal())
		}
	}

	if !decision.Eligible {
		log.Printf("[auto-purchase] listing not eligible, stopping")
		return
	}
	if *dryRun {
		log.Printf("[auto-purchase] dry run, not enqueueing")
		return
	}

	intent, err := eng.Enqueue(ctx, engine.EnqueueRequest{
		ListingID:      *listingID,
		UserID:         *userID,
		Platform:       *platform,
		Quantity:       *quantity,
		MaxPrice:       *maxPrice,
		EstimatedPrice: *price,
		Priority:       *priority,
		AutoRetry:      true,
	})
	if err != nil {
		log.Fatalf("[auto-purchase] enqueue failed: %v", err)
	}
	log.Printf("[auto-purchase] intent %s enqueued", intent.ID)

	// Drive the queue inline until the intent settles.
	deadline := time.Now().Add(cfg.PurchaseTimeout + 30*time.Second)
	for time.Now().Before(deadline) {
		if _, err := eng.ProcessNext(ctx); err != nil {
			log.Fatalf("[auto-purchase] processing failed: %v", err)
		}
		current, err := eng.GetIntent(ctx, intent.ID)
		if err != nil {
			log.Fatalf("[auto-purchase] lookup failed: %v", err)
		}
		if models.TerminalStatus(current.Status) {
			report(current)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Printf("[auto-purchase] timed out waiting for intent %s to settle", intent.ID)
}

func report(intent *models.PurchaseIntent) {
	switch intent.Status {
	case models.StatusCompleted:
		log.Printf("[auto-purchase] completed: %.2f + %.2f fees after %d attempt(s)",
			intent.FinalPrice, intent.FinalFees, intent.AttemptCount)
	case models.StatusFailed:
		log.Printf("[auto-purchase] failed after %d attempt(s): %s", intent.AttemptCount, intent.FailureReason)
	default:
		log.Printf("[auto-purchase] finished with status %s", intent.Status)
	}
	log.Printf("[auto-purchase] ==================== done ====================")
}

func runModeText() string {
	if *dryRun {
		return "dry run (no intents will be enqueued)"
	}
	return "live (will enqueue and execute purchases)"
}
