package main

import (
	"context"
	"log"

	"clubhub/config"
	"clubhub/core/store"
	"clubhub/core/utils"
)

// Standalone migration runner for deployments that apply schema
// changes before rolling the server binary.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	logger.Printf("migrations applied")
}
