package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.True(t, cfg.EngineEnabled)
	require.Equal(t, 3, cfg.MaxConcurrentPurchases)
	require.Equal(t, 45*time.Second, cfg.PurchaseTimeout)
	require.Equal(t, 8*time.Second, cfg.QuoteTimeout)
	require.Equal(t, 3, cfg.RetryAttemptCap)
	require.Equal(t, "balanced", cfg.DecisionAlgorithm)

	require.Len(t, cfg.Platforms, len(KnownPlatforms))
	require.Equal(t, 0.0, cfg.Platforms["tickpick"].FeeRate)
	require.Equal(t, 0.20, cfg.Platforms["stubhub"].FeeRate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKET_ENGINE_ENABLED", "false")
	t.Setenv("MAX_CONCURRENT_PURCHASES", "8")
	t.Setenv("PURCHASE_TIMEOUT", "90s")
	t.Setenv("DECISION_ALGORITHM", "conservative")
	t.Setenv("PLATFORM_VIAGOGO_ENABLED", "false")
	t.Setenv("PLATFORM_STUBHUB_URL", "http://localhost:9999")

	cfg := Load()

	require.False(t, cfg.EngineEnabled)
	require.Equal(t, 8, cfg.MaxConcurrentPurchases)
	require.Equal(t, 90*time.Second, cfg.PurchaseTimeout)
	require.Equal(t, "conservative", cfg.DecisionAlgorithm)
	require.False(t, cfg.Platforms["viagogo"].Enabled)
	require.Equal(t, "http://localhost:9999", cfg.Platforms["stubhub"].BaseURL)
	require.NotContains(t, cfg.EnabledPlatforms(), "viagogo")
}

func TestLoadClampsBadValues(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_PURCHASES", "0")
	t.Setenv("RETRY_ATTEMPT_CAP", "-2")

	cfg := Load()

	require.Equal(t, 1, cfg.MaxConcurrentPurchases)
	require.Equal(t, 0, cfg.RetryAttemptCap)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_PURCHASES", "lots")
	t.Setenv("PURCHASE_TIMEOUT", "soon")
	t.Setenv("TICKET_ENGINE_ENABLED", "yep")

	cfg := Load()

	require.Equal(t, 3, cfg.MaxConcurrentPurchases)
	require.Equal(t, 45*time.Second, cfg.PurchaseTimeout)
	require.True(t, cfg.EngineEnabled)
}
