package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"brewsync/internal/config"
	"brewsync/internal/listener"
	"brewsync/internal/logger"
	"brewsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	log := logger.New(logger.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	svc := listener.NewService(db, cfg, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
