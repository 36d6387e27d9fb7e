package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration surface of the purchase engine and its
// surrounding services. Every field has an env var with a documented default.
type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Engine kill switch. When false the worker admits nothing.
	EngineEnabled bool

	// Gate size: upper bound on simultaneously processing intents.
	MaxConcurrentPurchases int

	// Per-attempt platform purchase call budget.
	PurchaseTimeout time.Duration

	// Per-platform quote call budget during comparison fan-out.
	QuoteTimeout time.Duration

	// Total attempts allowed per intent when auto_retry is set.
	RetryAttemptCap int

	// Backoff between transient retries.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Named scoring profile: balanced, conservative, aggressive.
	DecisionAlgorithm string

	// Worker daemon polling interval.
	WorkerInterval time.Duration

	// Platform enablement and credentials.
	Platforms map[string]PlatformConfig
}

// PlatformConfig holds per-platform toggle and client settings.
type PlatformConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	// FeeRate estimates checkout fees when the platform doesn't quote them.
	FeeRate float64
}

// Known platform names, matching the resale platforms the scraping pipeline
// covers.
var KnownPlatforms = []string{"stubhub", "tickpick", "viagogo", "funzone"}

var defaultPlatformURLs = map[string]string{
	"stubhub":  "https://api.stubhub.example.com",
	"tickpick": "https://api.tickpick.example.com",
	"viagogo":  "https://api.viagogo.example.com",
	"funzone":  "https://api.funzone.example.com",
}

var defaultFeeRates = map[string]float64{
	"stubhub":  0.20,
	"tickpick": 0.0, // all-in pricing
	"viagogo":  0.25,
	"funzone":  0.15,
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		EngineEnabled:          getEnvBool("TICKET_ENGINE_ENABLED", true),
		MaxConcurrentPurchases: getEnvInt("MAX_CONCURRENT_PURCHASES", 3),
		PurchaseTimeout:        getEnvDuration("PURCHASE_TIMEOUT", 45*time.Second),
		QuoteTimeout:           getEnvDuration("QUOTE_TIMEOUT", 8*time.Second),
		RetryAttemptCap:        getEnvInt("RETRY_ATTEMPT_CAP", 3),
		RetryBaseDelay:         getEnvDuration("RETRY_BASE_DELAY", 1*time.Second),
		RetryMaxDelay:          getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		DecisionAlgorithm:      getEnv("DECISION_ALGORITHM", "balanced"),
		WorkerInterval:         getEnvDuration("WORKER_INTERVAL", 2*time.Second),

		Platforms: make(map[string]PlatformConfig),
	}

	if cfg.MaxConcurrentPurchases < 1 {
		cfg.MaxConcurrentPurchases = 1
	}
	if cfg.RetryAttemptCap < 0 {
		cfg.RetryAttemptCap = 0
	}

	for _, name := range KnownPlatforms {
		upper := strings.ToUpper(name)
		cfg.Platforms[name] = PlatformConfig{
			Enabled: getEnvBool("PLATFORM_"+upper+"_ENABLED", true),
			BaseURL: getEnv("PLATFORM_"+upper+"_URL", defaultPlatformURLs[name]),
			APIKey:  getEnv("PLATFORM_"+upper+"_API_KEY", ""),
			FeeRate: defaultFeeRates[name],
		}
	}

	return cfg
}

// EnabledPlatforms returns the names of all platforms toggled on.
func (c *Config) EnabledPlatforms() []string {
	var names []string
	for _, name := range KnownPlatforms {
		if pc, ok := c.Platforms[name]; ok && pc.Enabled {
			names = append(names, name)
		}
	}
	return names
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
