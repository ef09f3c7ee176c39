package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

func NewDatabase(ctx context.Context, databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "sqlite":
		if err = ensureParentDir(connectionString); err != nil {
			return nil, err
		}
		database, err = NewSQLiteDatabase(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}

	// Ensure database schema exists (idempotent), important for in-memory SQLite
	log.Print("initializing database schema (ensuring tables exist)")
	if _, err = database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}

// ensureParentDir creates the directory of a plain SQLite file path
func ensureParentDir(connectionString string) error {
	if connectionString == "" || connectionString == ":memory:" || strings.HasPrefix(connectionString, "file:") {
		return nil
	}
	dir := filepath.Dir(connectionString)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}
	return nil
}
