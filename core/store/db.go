package store

import (
	"database/sql"
	"errors"
	"strings"

	"clubhub/config"
	"clubhub/core/utils"

	_ "modernc.org/sqlite"
)

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, errors.New("db_path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		if logger != nil {
			logger.Errorf("db open failed: %v", err)
		}
		return nil, err
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger != nil {
		logger.Printf("db open sqlite path=%s", path)
	}
	return db, nil
}
