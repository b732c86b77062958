// Package main is the entrypoint for the contacthub server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/graph"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
	"github.com/contacthub/contacthub/internal/relay"
	"github.com/contacthub/contacthub/internal/server"
	"github.com/contacthub/contacthub/internal/store"

	// Register store drivers
	_ "github.com/contacthub/contacthub/internal/store/memory"
	_ "github.com/contacthub/contacthub/internal/store/sqlite"

	// Register notification transports
	_ "github.com/contacthub/contacthub/internal/notify/hub"
	_ "github.com/contacthub/contacthub/internal/notify/pusher"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	storeDriver := flag.String("store", "", "Store driver: sqlite or memory (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for file-backed stores (overrides config)")
	transport := flag.String("transport", "", "Notification transport: log, pusher, or hub (overrides config)")
	jwtSecret := flag.String("jwt-secret", "", "Token signing secret (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:  listenAddr,
			LogLevel:    logLevel,
			StoreDriver: storeDriver,
			DataDir:     dataDir,
			Transport:   transport,
			JWTSecret:   jwtSecret,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Tokens signed with an ephemeral secret die with the process.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Error("failed to generate ephemeral secret", "error", err)
			os.Exit(1)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("auth.jwt_secret not set, using an ephemeral secret; sessions will not survive restarts")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := db.Init(ctx); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("store opened", "driver", db.Name(), "available", store.AvailableDrivers())

	transportImpl, err := notify.NewTransport(cfg.Notify.Transport, cfg.TransportSettings(), logger)
	if err != nil {
		logger.Error("failed to open notification transport", "transport", cfg.Notify.Transport, "error", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(transportImpl, logger, cfg.Notify.QueueSize)
	defer dispatcher.Close()

	tokens := identity.NewTokenIssuer([]byte(secret), cfg.TokenTTL())
	provider := identity.NewLocalProvider(db, identity.NewUserAuth(), tokens)
	connectionGraph := graph.New(db, provider, dispatcher, logger)
	messageRelay := relay.New(connectionGraph, dispatcher, logger)

	srv, err := server.New(cfg, logger, &server.Deps{
		Provider:   provider,
		Graph:      connectionGraph,
		Relay:      messageRelay,
		Dispatcher: dispatcher,
		Transport:  transportImpl,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil && ctx.Err() == nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
