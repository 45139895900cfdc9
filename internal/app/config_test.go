package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aqualedger/aqualedger/internal/app"
	_ "github.com/aqualedger/aqualedger/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "local-secret")
	t.Setenv("BUSINESS_TIMEZONE", "Asia/Kolkata")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, "memory", cfg.PlanCacheBackend)
	require.Equal(t, 30, cfg.OverdueAfterDays)
	require.Equal(t, "₹", cfg.CurrencySymbol)
	require.Equal(t, 3, cfg.TxMaxRetries)
	require.False(t, cfg.IsProduction())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadConfigRejects(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := app.LoadConfig()
		require.Error(t, err)
	})
	t.Run("short production secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		t.Setenv("APP_ENV", "production")
		_, err := app.LoadConfig()
		require.ErrorContains(t, err, "32 bytes")
	})
	t.Run("unknown cache backend", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "local-secret")
		t.Setenv("PLAN_CACHE_BACKEND", "memcached")
		_, err := app.LoadConfig()
		require.ErrorContains(t, err, "memcached")
	})
	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "local-secret")
		t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus")
		_, err := app.LoadConfig()
		require.ErrorContains(t, err, "Mars/Olympus")
	})
}

func TestInTestMode(t *testing.T) {
	t.Setenv(app.TestModeEnv, "1")
	app.RefreshTestMode()
	require.True(t, app.InTestMode())

	t.Setenv(app.TestModeEnv, "")
	app.RefreshTestMode()
	require.False(t, app.InTestMode())
}
