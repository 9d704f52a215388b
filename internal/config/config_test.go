package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCartDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"HTTP_ADDR", "CART_STORE", "INVENTORY_LOOKUP_TIMEOUT", "RECONCILE_MAX_CONCURRENCY", "PUBLISH_EVENTS", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := LoadCart()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 2*time.Second, cfg.InventoryLookupTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.True(t, cfg.PublishEvents)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
}

func TestLoadCartOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("CART_STORE", "SQLite")
	t.Setenv("INVENTORY_LOOKUP_TIMEOUT", "750ms")
	t.Setenv("RECONCILE_MAX_CONCURRENCY", "3")
	t.Setenv("PUBLISH_EVENTS", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://localhost:4200, https://ducks.example ,")

	cfg := LoadCart()

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 750*time.Millisecond, cfg.InventoryLookupTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.False(t, cfg.PublishEvents)
	assert.Equal(t, []string{"http://localhost:4200", "https://ducks.example"}, cfg.CORSAllowOrigins)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CART_STORE", "mongo")
	t.Setenv("INVENTORY_LOOKUP_TIMEOUT", "soon")
	t.Setenv("RECONCILE_MAX_CONCURRENCY", "-2")
	t.Setenv("PUBLISH_EVENTS", "maybe")

	cfg := LoadCart()

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 2*time.Second, cfg.InventoryLookupTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.True(t, cfg.PublishEvents)
}

func TestLoadInventoryReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CONSUME_EVENTS=false\nHTTP_ADDR=:7000\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("CONSUME_EVENTS", "")
	t.Setenv("HTTP_ADDR", ":7100")

	// godotenv does not override variables that are already set, even to "".
	os.Unsetenv("CONSUME_EVENTS")

	cfg := LoadInventory()

	assert.False(t, cfg.ConsumeEvents)
	assert.Equal(t, ":7100", cfg.HTTPAddr)
}
