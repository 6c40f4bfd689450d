// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wingedpig/relay/internal/admin"
	"github.com/wingedpig/relay/internal/config"
	"github.com/wingedpig/relay/internal/relayserver"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		host        string
		httpPort    int
		httpsPort   int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Listener host (overrides config)")
	flag.IntVar(&httpPort, "port", 0, "HTTP listener port (overrides config)")
	flag.IntVar(&httpsPort, "https-port", 0, "HTTPS listener port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if showVersion {
		fmt.Printf("relayd %s\n", version)
		os.Exit(0)
	}

	loader := config.NewLoader()
	if configPath == "" {
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	settings, err := loader.LoadWithDefaults(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if host != "" {
		settings.Host = host
	}
	if httpPort != 0 {
		settings.HTTPPort = httpPort
	}
	if httpsPort != 0 {
		settings.HTTPSPort = httpsPort
	}
	settings.Debug = settings.Debug || debug

	if err := config.NewValidator().Validate(settings); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	hub := admin.NewHub()
	srv := relayserver.New(*settings, hub.Hooks())

	ctx := context.Background()
	if err := run(ctx, srv, hub, *settings); err != nil {
		log.Fatalf("relayd: %v", err)
	}
}

// run starts the relay server (and the optional admin surface), then blocks
// until a shutdown signal arrives.
func run(ctx context.Context, srv *relayserver.Server, hub *admin.Hub, settings config.Settings) error {
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start relay server: %w", err)
	}

	var adminServer *http.Server
	if settings.AdminListen != "" {
		adminServer = &http.Server{
			Addr:    settings.AdminListen,
			Handler: admin.NewRouter(srv.Entries, hub),
		}
		go func() {
			log.Printf("Starting admin server on %s", settings.AdminListen)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("admin server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down admin server: %v", err)
			firstErr = err
		}
	}
	if err := srv.Reset(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
