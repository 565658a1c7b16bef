package endpoints

import (
	"context"
	"dashboard"
	"dashboard/internal/api/handler/mapper"
	"dashboard/internal/api/handler/middleware"
	"dashboard/internal/api/handler/request"
	"dashboard/internal/api/handler/response"
	"dashboard/internal/api/service"
	"dashboard/internal/engine/editor"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
	"dashboard/pkg"
	"errors"
	"net/http"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type graphReader interface {
	Scene(ctx context.Context, pipelineID uint) (editor.Scene, error)
	Diagnostics(ctx context.Context, pipelineID uint) (service.Diagnostics, error)
	HasNode(ctx context.Context, pipelineID uint, nodeID uint) (bool, error)
}

type positionStore interface {
	Load(ctx context.Context, pipelineID uint) (layout.Overrides, error)
	Save(ctx context.Context, pipelineID uint, nodeID uint, p geom.Point) error
	Reset(ctx context.Context, pipelineID uint) error
}

type pipelineHandler struct {
	logger         zerolog.Logger
	config         dashboard.AppConfig
	graphs         graphReader
	positions      positionStore
	positionMapper mapper.PositionMapper
}

func newPipelineHandler(graphs graphReader, positions positionStore) *pipelineHandler {
	return &pipelineHandler{
		logger:         dashboard.Logger,
		config:         dashboard.GetConfig(),
		graphs:         graphs,
		positions:      positions,
		positionMapper: mapper.NewPositionMapper(),
	}
}

// PipelineHandler sets up the graph and node position routes
func PipelineHandler(router *graceful.Graceful, graphs *service.GraphService, positions *service.PositionService) {
	h := newPipelineHandler(graphs, positions)
	h.register(router.Group("/api/v1/pipelines"))
}

func (slf *pipelineHandler) register(routes *gin.RouterGroup) {
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("/:id/graph", slf.getGraph)
		routes.GET("/:id/diagnostics", slf.getDiagnostics)
		routes.GET("/:id/positions", slf.getPositions)
	}

	edit := routes.Group("")
	edit.Use(middleware.RequireRole(slf.config, middleware.RoleEditor, middleware.RoleAdmin))
	{
		edit.PUT("/:id/positions/:nodeId", slf.updatePosition)
		edit.DELETE("/:id/positions", slf.resetPositions)
	}
}

func (slf *pipelineHandler) getGraph(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	scene, err := slf.graphs.Scene(c.Request.Context(), pipelineID)
	if err != nil {
		slf.fail(c, err, "Failed to build pipeline graph")
		return
	}
	c.JSON(http.StatusOK, scene)
}

func (slf *pipelineHandler) getDiagnostics(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	diagnostics, err := slf.graphs.Diagnostics(c.Request.Context(), pipelineID)
	if err != nil {
		slf.fail(c, err, "Failed to inspect pipeline graph")
		return
	}
	c.JSON(http.StatusOK, diagnostics)
}

func (slf *pipelineHandler) getPositions(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	overrides, err := slf.positions.Load(c.Request.Context(), pipelineID)
	if err != nil {
		slf.fail(c, err, "Failed to load node positions")
		return
	}
	c.JSON(http.StatusOK, slf.positionMapper.ToPositionsResponse(pipelineID, overrides))
}

func (slf *pipelineHandler) updatePosition(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}
	nodeID, err := pkg.ParseIDParam(c, "nodeId")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	var req request.UpdatePosition
	if err = pkg.ParseAndValidate(c, &req); err != nil {
		slf.logger.Debug().Err(err).Msg("Failed to parse position request")
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	exists, err := slf.graphs.HasNode(ctx, pipelineID, nodeID)
	if err != nil {
		slf.fail(c, err, "Failed to check pipeline node")
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, response.APIError{Message: "Node not found"})
		return
	}

	p := geom.Pt(*req.X, *req.Y)
	if err = slf.positions.Save(ctx, pipelineID, nodeID, p); err != nil {
		slf.fail(c, err, "Failed to save node position")
		return
	}

	slf.logger.Debug().
		Uint("pipelineId", pipelineID).
		Uint("nodeId", nodeID).
		Uint("userId", middleware.CurrentUser(c).ID).
		Msg("Node position saved")
	c.JSON(http.StatusOK, slf.positionMapper.ToPositionResponse(nodeID, p))
}

func (slf *pipelineHandler) resetPositions(c *gin.Context) {
	pipelineID, err := pkg.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	if err = slf.positions.Reset(c.Request.Context(), pipelineID); err != nil {
		slf.fail(c, err, "Failed to reset node positions")
		return
	}
	c.JSON(http.StatusOK, response.PositionsReset{PipelineID: pipelineID})
}

// fail maps service errors to a status code
func (slf *pipelineHandler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrPipelineNotFound):
		c.JSON(http.StatusNotFound, response.APIError{Message: "Pipeline not found"})
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, response.APIError{Message: "Node not found"})
	case errors.Is(err, service.ErrInvalidPosition):
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
	default:
		slf.logger.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, response.APIError{Message: msg})
	}
}
