package endpoints

import (
	"dashboard"
	"dashboard/internal/api/handler/middleware"
	"dashboard/internal/api/handler/response"
	"dashboard/internal/api/service"
	websocket2 "dashboard/internal/api/websocket"
	"dashboard/pkg"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, you should validate the origin
		return true
	},
}

type websocketHandler struct {
	hub       *websocket2.Hub
	processor *websocket2.MessageProcessor
	logger    zerolog.Logger
	config    dashboard.AppConfig
}

func newWebSocketHandler(hub *websocket2.Hub, processor *websocket2.MessageProcessor) *websocketHandler {
	return &websocketHandler{
		hub:       hub,
		processor: processor,
		logger:    dashboard.Logger,
		config:    dashboard.GetConfig(),
	}
}

// WebSocketHandler sets up the editor WebSocket routes
func WebSocketHandler(router *graceful.Graceful, hub *websocket2.Hub, processor *websocket2.MessageProcessor) {
	h := newWebSocketHandler(hub, processor)
	h.register(router.Group("/api/v1/ws"))
}

func (slf *websocketHandler) register(wsRoutes *gin.RouterGroup) {
	wsRoutes.GET("/stats", slf.getRoomStats)

	wsRoutes.Use(middleware.AuthMiddleware(slf.config))
	{
		wsRoutes.GET("/pipelines/:id/editor", slf.handleWebSocket)
		wsRoutes.GET("/pipelines/:id/users", slf.getActiveUsers)
	}
}

// handleWebSocket opens an editor session on a pipeline. The pipeline is
// loaded before the upgrade so a missing one is a plain 404.
func (slf *websocketHandler) handleWebSocket(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	username := user.Username
	if username == "" {
		username = fmt.Sprintf("User%d", user.ID)
	}

	clientID := uuid.New().String()
	sessionLogger := slf.logger.With().Str("clientId", clientID).Logger()

	ctrl, err := slf.processor.Open(c.Request.Context(), pipelineID, user.CanEdit(), &sessionLogger)
	if err != nil {
		if errors.Is(err, service.ErrPipelineNotFound) {
			c.JSON(http.StatusNotFound, response.APIError{Message: "Pipeline not found"})
			return
		}
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Msg("Failed to open editor session")
		c.JSON(http.StatusInternalServerError, response.APIError{Message: "Failed to open editor session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slf.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}

	client := websocket2.NewClient(
		clientID,
		user.ID,
		username,
		pipelineID,
		slf.hub,
		conn,
		slf.processor,
		ctrl,
		slf.logger,
	)

	if !slf.hub.Join(client) {
		slf.logger.Warn().Str("clientId", clientID).Msg("Hub stopped, WebSocket connection dropped")
		return
	}

	slf.logger.Info().
		Str("clientId", clientID).
		Uint("userId", user.ID).
		Uint("pipelineId", pipelineID).
		Bool("canEdit", user.CanEdit()).
		Msg("WebSocket connection established")

	go client.WritePump()
	go client.ReadPump()
}

// getActiveUsers returns the users editing a pipeline
func (slf *websocketHandler) getActiveUsers(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelineId": pipelineID,
		"users":      slf.hub.GetActiveUsersInRoom(pipelineID),
	})
}

// getRoomStats returns the number of editors per pipeline
func (slf *websocketHandler) getRoomStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rooms": slf.hub.GetRoomStats(),
	})
}
