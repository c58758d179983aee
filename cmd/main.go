package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"postgate/internal/app"
	"postgate/internal/config"
	"postgate/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	srv, err := app.NewServer(cfg, nil, log)
	if err != nil {
		log.Error("startup failed", logger.Error(err))
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		log.Error("startup failed", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srv.Done():
		if err != nil {
			log.Error("server stopped", logger.Error(err))
			os.Exit(1)
		}
		return
	case <-sigChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		os.Exit(1)
	}
}
