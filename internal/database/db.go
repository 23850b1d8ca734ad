// Package database provides PostgreSQL-backed storage for events,
// alerts, linkages, and the audit log. It implements the same store
// contracts as the in-memory store, for deployments that need
// durability across restarts.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"alertcore/internal/model"
)

// DB wraps a database connection and provides event, alert, and audit
// operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// NewDBFromConn wraps an existing connection. Used by tests.
func NewDBFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// pageWindow converts a filter's page/limit into a LIMIT/OFFSET pair,
// applying the same defaults as the in-memory store's pagination.
func pageWindow(page, limit int) (int, int) {
	if limit <= 0 {
		limit = model.DefaultPageLimit
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// marshalJSON serializes a map column, treating nil as SQL NULL.
func marshalJSON(m any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return data, nil
}

// unmarshalJSON deserializes a nullable JSON column into dst, logging
// and ignoring malformed payloads.
func unmarshalJSON(raw sql.NullString, dst any, warnAttrs ...any) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), dst); err != nil {
		slog.Warn("Failed to unmarshal JSON column", append([]any{"error", err}, warnAttrs...)...)
	}
}
