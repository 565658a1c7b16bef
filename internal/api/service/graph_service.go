package service

import (
	"context"
	"dashboard"
	"dashboard/internal/api/models"
	"dashboard/internal/api/repo"
	"dashboard/internal/engine/editor"
	"dashboard/internal/engine/graph"
	"dashboard/internal/engine/layout"
	"dashboard/internal/engine/position"
	"dashboard/internal/engine/route"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type pipelineFinder interface {
	FindByID(ctx context.Context, id uint) (models.Pipeline, error)
}

type unitFinder interface {
	FindByPipeline(ctx context.Context, pipelineID uint) ([]models.Unit, error)
}

// GraphService turns the stored units of a pipeline into laid out graphs and
// editor controllers.
type GraphService struct {
	pipelines pipelineFinder
	units     unitFinder
	positions position.Store
	layout    *layout.Engine
	router    *route.Router
	config    dashboard.EditorConfig
	logger    zerolog.Logger
}

func NewGraphService(positions position.Store) *GraphService {
	return newGraphService(repo.NewPipelineRepository(), repo.NewUnitRepository(), positions, dashboard.GetConfig().EditorConfig, dashboard.Logger)
}

func newGraphService(pipelines pipelineFinder, units unitFinder, positions position.Store, cfg dashboard.EditorConfig, logger zerolog.Logger) *GraphService {
	engine, err := layout.New(cfg.LayoutConfig())
	if err != nil {
		logger.Error().Err(err).Msg("Invalid layout configuration, using defaults")
		engine, _ = layout.New(layout.DefaultConfig())
	}
	return &GraphService{
		pipelines: pipelines,
		units:     units,
		positions: positions,
		layout:    engine,
		router:    route.New(cfg.RouterConfig(), logger),
		config:    cfg,
		logger:    logger,
	}
}

// Units returns the unit records of an existing pipeline
func (slf *GraphService) Units(ctx context.Context, pipelineID uint) ([]models.Unit, error) {
	if _, err := slf.pipelines.FindByID(ctx, pipelineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
		}
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Msg("Error getting pipeline")
		return nil, err
	}

	units, err := slf.units.FindByPipeline(ctx, pipelineID)
	if err != nil {
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Msg("Error getting pipeline units")
		return nil, err
	}
	return units, nil
}

// Snapshot returns what an editor needs to load a pipeline. Overrides that
// cannot be read are logged and replaced by the grid.
func (slf *GraphService) Snapshot(ctx context.Context, pipelineID uint) ([]models.Unit, layout.Overrides, error) {
	units, err := slf.Units(ctx, pipelineID)
	if err != nil {
		return nil, nil, err
	}

	overrides, err := slf.positions.Load(ctx, pipelineID)
	if err != nil {
		slf.logger.Warn().Err(err).Uint("pipelineId", pipelineID).Msg("Positions unavailable, using the default layout")
		overrides = layout.Overrides{}
	}
	return units, overrides, nil
}

// Graph builds and lays out the pipeline graph. Node sizes are the
// configured estimate since nothing rendered them yet.
func (slf *GraphService) Graph(ctx context.Context, pipelineID uint) (*graph.Graph, error) {
	units, overrides, err := slf.Snapshot(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	g := graph.Build(units, graph.BuildOptions{MaxLevelPasses: slf.config.MaxLevelPasses, Logger: &slf.logger})
	slf.layout.Apply(g, overrides)
	slf.layout.EstimateSizes(g)
	if res := slf.router.RouteAll(g); len(res.Deferred) > 0 {
		slf.logger.Debug().Uint("pipelineId", pipelineID).Int("deferred", len(res.Deferred)).Msg("Some edges were not routed")
	}
	return g, nil
}

// Scene renders the pipeline at zoom 1 with nothing selected
func (slf *GraphService) Scene(ctx context.Context, pipelineID uint) (editor.Scene, error) {
	g, err := slf.Graph(ctx, pipelineID)
	if err != nil {
		return editor.Scene{}, err
	}
	viewport := editor.NewViewport(slf.config.MinZoom, slf.config.MaxZoom)
	return editor.BuildScene(pipelineID, g, viewport, 0, 0, nil, editor.State{Kind: editor.Idle}), nil
}

// Diagnostics summarizes how well the stored records formed a graph
type Diagnostics struct {
	PipelineID uint               `json:"pipelineId"`
	Degraded   bool               `json:"degraded"`
	Nodes      int                `json:"nodes"`
	Edges      int                `json:"edges"`
	Roots      []uint             `json:"roots"`
	Items      []graph.Diagnostic `json:"items"`
}

func (slf *GraphService) Diagnostics(ctx context.Context, pipelineID uint) (Diagnostics, error) {
	units, err := slf.Units(ctx, pipelineID)
	if err != nil {
		return Diagnostics{}, err
	}
	g := graph.Build(units, graph.BuildOptions{MaxLevelPasses: slf.config.MaxLevelPasses, Logger: &slf.logger})

	items := g.Diagnostics()
	if items == nil {
		items = []graph.Diagnostic{}
	}
	return Diagnostics{
		PipelineID: pipelineID,
		Degraded:   g.Degraded(),
		Nodes:      g.Len(),
		Edges:      g.EdgeCount(),
		Roots:      g.Roots(),
		Items:      items,
	}, nil
}

// HasNode reports whether the unit belongs to the pipeline
func (slf *GraphService) HasNode(ctx context.Context, pipelineID uint, nodeID uint) (bool, error) {
	units, err := slf.Units(ctx, pipelineID)
	if err != nil {
		return false, err
	}
	for _, u := range units {
		if u.ID == nodeID {
			return true, nil
		}
	}
	return false, nil
}

// Editor returns a controller sharing this service's layout and router
func (slf *GraphService) Editor(pipelineID uint, saver editor.Saver, hooks editor.Hooks, logger *zerolog.Logger) *editor.Controller {
	if logger == nil {
		logger = &slf.logger
	}
	return editor.New(editor.Options{
		PipelineID: pipelineID,
		Config:     slf.config.ControllerConfig(),
		Layout:     slf.layout,
		Router:     slf.router,
		Saver:      saver,
		Hooks:      hooks,
		Logger:     logger,
	})
}
