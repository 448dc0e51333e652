package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clubhub/api"
	"clubhub/cli"
	"clubhub/config"
	"clubhub/core/bootstrap"
	"clubhub/core/store"
	"clubhub/core/utils"
)

func main() {
	if len(os.Args) > 1 {
		cli.Run()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db init: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	if err := bootstrap.EnsureDefaults(context.Background(), db, cfg, logger); err != nil {
		logger.Fatalf("seed defaults: %v", err)
	}

	srv := api.NewServer(cfg, db, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}
