// Copyright (c) 2025 Sudo-Ivan
// Licensed under the MIT License

// Command arcgis-bufferd serves the selection stack over HTTP and websocket.
// Clients send clicks and extent changes; every cycle and extent update is
// broadcast to all connected clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/app"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/logging"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	addr := flag.String("addr", "", "Listen address (default: server.addr from config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		slog.Error("arcgis-bufferd failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	cleanup, err := logging.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		slog.Warn("initial extent sync failed", "error", err)
	}

	opts := []server.Option{server.WithCycleTimeout(2 * cfg.Request.Timeout.Std())}
	if a.Secondary != nil {
		opts = append(opts, server.WithView(a.Secondary))
	}
	s := server.New(a.Orchestrator, a.Primary, opts...)
	defer s.Close()

	srv := server.NewHTTPServer(cfg.Server.Addr, s.Handler())
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr, "order", a.Orchestrator.Order())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
