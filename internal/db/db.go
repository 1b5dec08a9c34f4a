package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameExists  = errors.New("username already exists")
	ErrTaskNotFound    = errors.New("task not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownDriver   = errors.New("unknown database driver")
)

func Connect(driverName, dsn string, maxOpenConns, maxIdleConns int) (*sql.DB, error) {
	if driverName != DriverSQLite && driverName != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	return db, nil
}

// Migrate creates the tables for the given driver if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driverName string) error {
	var schema string
	switch driverName {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS new_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	start_date TEXT NOT NULL,
	due_date TEXT NOT NULL,
	task TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_new_task_username_status ON new_task(username, status);
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username VARCHAR(255) NOT NULL UNIQUE,
	hash VARCHAR(255) NOT NULL
);
CREATE TABLE IF NOT EXISTS new_task (
	id SERIAL PRIMARY KEY,
	username VARCHAR(255) NOT NULL,
	start_date VARCHAR(10) NOT NULL,
	due_date VARCHAR(10) NOT NULL,
	task TEXT NOT NULL,
	description VARCHAR(500) NOT NULL,
	status VARCHAR(32) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_new_task_username_status ON new_task(username, status);
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(36) PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

// isUniqueViolation reports whether err is a unique constraint failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
