// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package main is the Fableboard server entry point.
//
// Fableboard is a collaborative story planning canvas: permissioned boards
// of positioned cards, typed connections between them, and threaded
// comments, edited concurrently by many users. The server owns entity
// state in DuckDB and relays ephemeral presence traffic (cursors, card
// focus, heartbeats) over WebSockets without interpreting it.
//
// Initialization order:
//
//  1. Load configuration (defaults, config.yaml, environment variables)
//  2. Initialize structured logging
//  3. Open the DuckDB entity store and the entity change bus
//  4. Build the relay hub, auth middleware, and HTTP router
//  5. Assemble the supervisor tree:
//     - data layer: orphan sweeper
//     - messaging layer: relay hub, entity change pump
//     - api layer: HTTP server
//  6. Serve until SIGINT/SIGTERM, then shut down within the configured
//     timeout
//
// Configuration is environment-first; every key in config.yaml has an
// equivalent FABLEBOARD_* variable. The default port is 3861.
//
// Example:
//
//	FABLEBOARD_SECURITY_JWT_SECRET=... ./fableboard
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/fableboard/internal/api"
	"github.com/tomtom215/fableboard/internal/auth"
	"github.com/tomtom215/fableboard/internal/config"
	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/relay"
	"github.com/tomtom215/fableboard/internal/store"
	"github.com/tomtom215/fableboard/internal/supervisor"
	"github.com/tomtom215/fableboard/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("database", cfg.Database.Path).
		Msg("Starting Fableboard")

	// The bus carries entity change events from the store to the relay
	// hub, which fans them out to each board's connected peers.
	bus := events.NewBus(256)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event bus close failed")
		}
	}()

	st, err := store.New(&cfg.Database, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open entity store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Msg("Entity store close failed")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token verification")
	}
	authMW := auth.NewMiddleware(jwtManager)

	wsLimiter := auth.NewRateLimiter(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow)
	defer wsLimiter.Stop()

	hub := relay.NewHub()
	handler := api.NewHandler(st, hub, cfg.Security.CORSOrigins)
	router := api.NewRouter(cfg, handler, authMW, wsLimiter)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build supervisor tree")
	}

	tree.AddDataService(services.NewSweeperService(st, cfg.Sweeper.Interval))
	tree.AddMessagingService(services.NewRelayHubService(hub))
	tree.AddMessagingService(services.NewEventPumpService(bus, hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Fableboard stopped gracefully")
}
