package main

import (
	"context"
	"dashboard"
	"dashboard/internal/realtime"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := realtime.LoadConfig()
	logger := dashboard.NewLogger(dashboard.GetEnv("RUN_MODE", "prod"))

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	conn := dashboard.ConnectToNats(cfg.NatsURL, "dashboard-realtime")
	defer conn.Close()

	hub := realtime.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	bridge := realtime.NewNATSBridge(conn, cfg.TenantID, hub, logger)
	defer bridge.Close()

	if err := bridge.Subscribe(); err != nil {
		logger.Fatal().Err(err).Msg("NATS subscribe failed")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(hub, cfg.JWTSecret, w, r)
	})
	server := &http.Server{Addr: cfg.RealtimePort, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.RealtimePort).Str("tenant", cfg.TenantID).Msg("Realtime service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Realtime server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Realtime server shutdown failed")
	}
}
