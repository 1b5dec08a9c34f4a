package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Connect(DriverSQLite, ":memory:", 1, 1)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := Migrate(context.Background(), db, DriverSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name          string
		driverName    string
		dsn           string
		expectedError bool
	}{
		{
			name:          "Successful connection with SQLite",
			driverName:    DriverSQLite,
			dsn:           ":memory:",
			expectedError: false,
		},
		{
			name:          "Failed connection with invalid DSN",
			driverName:    DriverSQLite,
			dsn:           "file::memory:?mode=invalid",
			expectedError: true,
		},
		{
			name:          "Unknown driver",
			driverName:    "mysql",
			dsn:           "user@/db",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Connect(tt.driverName, tt.dsn, 10, 5)

			if tt.expectedError {
				if err == nil {
					t.Error("Expected error, got none")
				}
				if conn != nil {
					t.Error("Expected nil connection on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer conn.Close()
			if conn.Stats().MaxOpenConnections != 10 {
				t.Errorf("Expected MaxOpenConnections to be 10, got %d", conn.Stats().MaxOpenConnections)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	// applying the schema twice must be harmless
	if err := Migrate(context.Background(), db, DriverSQLite); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	for _, table := range []string{"users", "new_task", "sessions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrate_UnknownDriver(t *testing.T) {
	db := setupTestDB(t)
	err := Migrate(context.Background(), db, "oracle")
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
