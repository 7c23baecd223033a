package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"signal-relay/appstate"
	"signal-relay/config"
	"signal-relay/database"
	"signal-relay/handlers"
	"signal-relay/logger"
	"signal-relay/realtime"
	"signal-relay/relay"
	"signal-relay/session"
	"signal-relay/signals"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	// Database
	db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DSN(), Debug: cfg.DBDebug})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrated successfully")

	store := database.NewStore(db)

	// Real-time channel and signal pipeline
	hub := realtime.NewHub()
	fanout := realtime.NewFanout(store, hub)
	forwarder := relay.New(cfg.RelayTimeout)
	dispatcher := signals.NewDispatcher(store, fanout, forwarder, signals.FallbackURLs{
		Buy:  cfg.ForwardBuyURL,
		Sell: cfg.ForwardSellURL,
	})

	handler := handlers.NewHandler(handlers.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Fanout:     fanout,
		Hub:        hub,
		Gate:       session.NewGate(cfg.Credentials, cfg.SessionTTL),
		State:      appstate.New(),
		AllowReset: cfg.AllowReset,
	})

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handler, handlers.RouterOptions{
		StaticDir:    cfg.StaticDir,
		EnableStatic: true,
		RateLimit:    cfg.WebhookRateLimit,
		RateBurst:    cfg.WebhookRateBurst,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server is running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	slog.Info("Shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	hub.Close()
	forwarder.Wait()
	slog.Info("Server stopped")
}
