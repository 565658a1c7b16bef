package main

import (
	"context"
	"dashboard"
	"dashboard/internal/api/handler/endpoints"
	"dashboard/internal/api/models"
	"dashboard/internal/api/service"
	"dashboard/internal/api/websocket"
	"dashboard/internal/engine/position"
	"dashboard/internal/realtime"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
)

func main() {
	dashboard.InitConfig(".env")
	gin.SetMode(gin.ReleaseMode)
	cfg := dashboard.GetConfig()

	if cfg.Mode == "dev" {
		if err := dashboard.DB.AutoMigrate(
			&models.Pipeline{},
			&models.Unit{},
			&models.NodePosition{},
		); err != nil {
			dashboard.Logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
		dashboard.Logger.Info().Msg("Database migrated successfully")
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	router, err := graceful.Default(graceful.WithAddr(cfg.ApiPort))
	if err != nil {
		panic(err)
	}
	defer stop()
	defer router.Close()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	hub := websocket.NewHub(dashboard.Logger)
	go hub.Run()
	defer hub.Stop()
	dashboard.Logger.Info().Msg("WebSocket hub started")

	positions := service.NewPositionService()
	positions.AddSink(hub)

	writer := position.NewWriter(positions, position.WriterOptions{
		Timeout: cfg.EditorConfig.SaveTimeout,
		Logger:  &dashboard.Logger,
		OnError: func(s position.Save, err error) {
			hub.Notify(s.PipelineID, fmt.Sprintf("Position of node %d could not be saved", s.NodeID))
		},
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.EditorConfig.SaveTimeout)
		defer cancel()
		if err := writer.Close(closeCtx); err != nil {
			dashboard.Logger.Error().Err(err).Int("pending", writer.Pending()).Msg("Pending positions were not saved")
		}
	}()

	graphs := service.NewGraphService(positions)
	processor := websocket.NewMessageProcessor(graphs, writer, dashboard.Logger)

	if dashboard.Nats != nil {
		bridge := realtime.NewNATSBridge(dashboard.Nats, cfg.NatsConfig.TenantID, hub, dashboard.Logger)
		bridge.SkipOrigin(cfg.InstanceID)
		if err = bridge.Subscribe(); err != nil {
			dashboard.Logger.Fatal().Err(err).Msg("Failed to subscribe to layout updates")
		}
		defer bridge.Close()
		dashboard.Logger.Info().Str("tenant", cfg.NatsConfig.TenantID).Msg("Layout bridge started")
	}

	initAPI(router, graphs, positions, hub, processor)

	dashboard.Logger.Debug().Msgf("Starting dashboard API on port %s", cfg.ApiPort)
	if err = router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		dashboard.Logger.Error().Err(err).Msg("Server stopped")
	}
}

func initAPI(router *graceful.Graceful, graphs *service.GraphService, positions *service.PositionService, hub *websocket.Hub, processor *websocket.MessageProcessor) {
	endpoints.PipelineHandler(router, graphs, positions)
	endpoints.WebSocketHandler(router, hub, processor)
}
