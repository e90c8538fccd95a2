package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// DB holds the database connection
var DB *sql.DB

// DBType identifies the database backend in use
type DBType string

const (
	DBTypeSQLite DBType = "sqlite"
	DBTypeMySQL  DBType = "mysql"
)

var dbType DBType = DBTypeSQLite

// Config selects and configures the backend
type Config struct {
	Type       DBType
	SQLitePath string
	MySQL      MySQLConfig
}

// Init opens the configured database and applies the schema migrations
func Init(cfg Config) error {
	var err error
	switch cfg.Type {
	case DBTypeMySQL:
		err = initMySQL(cfg.MySQL)
	case DBTypeSQLite, "":
		err = initSQLite(cfg.SQLitePath)
	default:
		return fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return err
	}

	if err := runMigrations(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Type returns the backend DB was opened with
func Type() DBType {
	return dbType
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}

// WithTransaction executes a function within a transaction with retry support
// If the function returns an error, the transaction is rolled back
// If the function succeeds, the transaction is committed
func WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithRetryContext(ctx, func() error {
		tx, err := DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			// Attempt rollback, ignore rollback errors
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func logInit(format string, args ...any) {
	log.Printf("Database: "+format, args...)
}
