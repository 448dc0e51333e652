package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"clubhub/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if logger != nil {
		logger.Printf("applying goose migrations")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("goose migrations applied")
	}
	return nil
}
