package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOCK_WAIT", "")
	t.Setenv("TX_MAX_ATTEMPTS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.LockWait)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("LOCK_WAIT", "250ms")
	t.Setenv("LOCK_TTL", "120")
	t.Setenv("TX_MAX_ATTEMPTS", "7")
	t.Setenv("SEED_CATALOG", "true")

	cfg := Load()

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWait)
	assert.Equal(t, 120*time.Second, cfg.LockTTL)
	assert.Equal(t, 7, cfg.TxMaxAttempts)
	assert.True(t, cfg.SeedCatalog)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TX_MAX_ATTEMPTS", "many")
	t.Setenv("TX_TIMEOUT", "soon")
	t.Setenv("AUTO_MIGRATE", "maybe")

	cfg := Load()

	assert.Equal(t, 3, cfg.TxMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.TxTimeout)
	assert.True(t, cfg.AutoMigrate)
}

func TestLockTTLCoversTransactionBudget(t *testing.T) {
	t.Setenv("LOCK_TTL", "15s")
	t.Setenv("TX_TIMEOUT", "10s")
	t.Setenv("TX_MAX_ATTEMPTS", "3")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.TxBudget())
	assert.Equal(t, 35*time.Second, cfg.LockTTL)
}

func TestTxBudgetIgnoresNonPositiveValues(t *testing.T) {
	cfg := &Config{TxMaxAttempts: 0, TxTimeout: 0}
	assert.Equal(t, 10*time.Second, cfg.TxBudget())
}
