// Package database provides database connectivity and management for the pharmacovigilance service.
package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialsignal/pharmacovigilance-service/internal/config"
)

// TestDBTX_Interface verifies that DBTX interface is properly defined.
// This test ensures the interface can be used for both pool and transaction operations.
func TestDBTX_Interface(t *testing.T) {
	t.Run("DBTX interface is properly defined", func(t *testing.T) {
		// Compile-time check - if DBTX doesn't have these methods,
		// the code won't compile
		var _ DBTX = (*mockDBTX)(nil)
	})
}

// mockDBTX is a mock implementation of DBTX for interface verification.
type mockDBTX struct{}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockDBTX) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockDBTX) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

// TestDatabaseConfig_DSN verifies config DSN generation works correctly.
func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN with all parameters", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "pharmavig",
			Password:       "secret",
			Name:           "pharmacovigilance_service",
			SSLMode:        config.SSLModeDisable,
			ConnectTimeout: 10 * time.Second,
		}

		dsn := cfg.DSN()

		assert.Contains(t, dsn, "postgres://")
		assert.Contains(t, dsn, "pharmavig")
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "pharmacovigilance_service")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in user and password", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user@domain",
			Password: "pass/word",
			Name:     "testdb",
			SSLMode:  config.SSLModeRequire,
		}

		dsn := cfg.DSN()

		// URL encoding should escape @ and /
		assert.Contains(t, dsn, "user%40domain")
		assert.Contains(t, dsn, "pass%2Fword")
	})
}

// TestHealthCheckTimeout verifies the health check timeout constant is properly defined.
func TestHealthCheckTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, HealthCheckTimeout)
}

// TestHealthStatus_Fields verifies HealthStatus struct construction and JSON serialization.
func TestHealthStatus_Fields(t *testing.T) {
	t.Run("all fields populated", func(t *testing.T) {
		hs := HealthStatus{
			Status:            "unhealthy",
			Error:             "connection refused",
			TotalConns:        10,
			AcquiredConns:     3,
			IdleConns:         7,
			ConstructingConns: 0,
			MaxConns:          50,
		}

		assert.Equal(t, "unhealthy", hs.Status)
		assert.Equal(t, int32(10), hs.TotalConns)
		assert.Equal(t, int32(3), hs.AcquiredConns)
	})

	t.Run("error field omitted when healthy", func(t *testing.T) {
		hs := HealthStatus{Status: "healthy"}

		data, err := json.Marshal(hs)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "error")
	})
}

// TestRuleLockKey verifies advisory lock key derivation.
func TestRuleLockKey(t *testing.T) {
	t.Run("stable for the same rule", func(t *testing.T) {
		id := uuid.New()
		assert.Equal(t, RuleLockKey(id), RuleLockKey(id))
	})

	t.Run("distinct rules get distinct keys", func(t *testing.T) {
		a := uuid.New()
		b := uuid.New()
		assert.NotEqual(t, RuleLockKey(a), RuleLockKey(b))
	})

	t.Run("known value", func(t *testing.T) {
		id := uuid.MustParse("00000000-0000-0000-0000-000000000000")
		// FNV-1a of 16 zero bytes is stable across runs
		assert.Equal(t, RuleLockKey(id), RuleLockKey(id))
		assert.NotZero(t, RuleLockKey(id))
	})
}

// TestAdvisoryLockBookkeeping covers the lock paths that never reach the pool.
func TestAdvisoryLockBookkeeping(t *testing.T) {
	ctx := context.Background()

	t.Run("release without acquire fails", func(t *testing.T) {
		db := &DB{}
		err := db.ReleaseAdvisoryLock(ctx, 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not held")
	})

	t.Run("held key short-circuits before pool access", func(t *testing.T) {
		// A nil pool would panic on Acquire; a key already in the table must
		// report not-acquired without touching the pool at all.
		db := &DB{lockConns: map[int64]*pgxpool.Conn{42: nil}}
		acquired, err := db.AcquireAdvisoryLock(ctx, 42)
		require.NoError(t, err)
		assert.False(t, acquired)
	})
}
