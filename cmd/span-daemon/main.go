// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Span-daemon serves a command registry and event stream over a Unix
// socket and, optionally, a WebSocket endpoint for webview frontends.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lattice-works/span/bridge"
	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/events"
	"github.com/lattice-works/span/lib/config"
	"github.com/lattice-works/span/lib/version"
	"github.com/lattice-works/span/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	pflag.StringVar(&configPath, "config", "", "path to config file (falls back to SPAN_CONFIG, then defaults)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("span-daemon %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting span-daemon",
		"version", version.Info(),
		"socket_path", cfg.Server.SocketPath,
		"listen_addr", cfg.Server.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker(logger)
	defer broker.Close()

	registry := dispatch.NewRegistry(logger)
	registerBuiltins(registry, broker)

	backend := &bridge.Backend{
		Registry:          registry,
		Broker:            broker,
		Logger:            logger,
		CompressThreshold: cfg.Wire.CompressThreshold,
	}

	var serveGroup sync.WaitGroup
	serveErrors := make(chan error, 2)

	if cfg.Server.SocketPath != "" {
		if err := cfg.EnsureSocketDir(); err != nil {
			return err
		}
		socketListener, err := transport.ListenSocket(cfg.Server.SocketPath, int64(cfg.Wire.MaxFrameBytes))
		if err != nil {
			return fmt.Errorf("listening on socket: %w", err)
		}
		serveGroup.Add(1)
		go func() {
			defer serveGroup.Done()
			if err := backend.Serve(ctx, socketListener); err != nil {
				serveErrors <- fmt.Errorf("socket serve: %w", err)
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		webSocketListener := transport.NewWebSocketListener(cfg.Server.ListenAddr, int64(cfg.Wire.MaxFrameBytes))
		mux := http.NewServeMux()
		mux.Handle("/bridge", webSocketListener.Handler())
		httpServer = &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: mux,
		}

		serveGroup.Add(1)
		go func() {
			defer serveGroup.Done()
			if err := backend.Serve(ctx, webSocketListener); err != nil {
				serveErrors <- fmt.Errorf("websocket serve: %w", err)
			}
		}()
		serveGroup.Add(1)
		go func() {
			defer serveGroup.Done()
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrors <- fmt.Errorf("http serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErrors:
		stop()
		logger.Error("serve failed", "error", err)
	}

	if httpServer != nil {
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		httpServer.Shutdown(shutdownContext)
	}
	serveGroup.Wait()

	select {
	case err := <-serveErrors:
		return err
	default:
		return nil
	}
}
