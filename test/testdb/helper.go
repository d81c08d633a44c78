package testdb

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/selivandex/whale-monitor/internal/adapters/database"
)

// Setup connects to the database named by TEST_DATABASE_URL, applies the
// migrations and registers a cleanup that truncates the whale tables.
// Tests that call it are skipped when the variable is unset, so the unit
// suite runs without a database.
//
// The migrations path is relative to the calling test's directory.
func Setup(t *testing.T, migrationsPath string) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database integration test")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(conn.DB, migrationsPath); err != nil {
		conn.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Leftovers from an aborted run must not leak into assertions
	Truncate(t, conn)

	t.Cleanup(func() {
		Truncate(t, conn)
		if err := conn.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return conn
}

// Truncate wipes the whale tables between tests
func Truncate(t *testing.T, conn *sqlx.DB) {
	t.Helper()

	for _, table := range []string{"whale_transactions", "address_labels"} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}
