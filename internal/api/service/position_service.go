package service

import (
	"context"
	"dashboard"
	"dashboard/internal/api/models"
	"dashboard/internal/api/repo"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
	"dashboard/internal/realtime"
	"dashboard/pkg"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

type positionRepository interface {
	FindByPipeline(ctx context.Context, pipelineID uint) ([]models.NodePosition, error)
	Upsert(ctx context.Context, p models.NodePosition) error
	DeleteByPipeline(ctx context.Context, pipelineID uint) (int64, error)
}

type positionCache interface {
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Version(ctx context.Context, key string) (int64, error)
	BumpVersion(ctx context.Context, key string) error
	SetIfVersion(ctx context.Context, versionKey string, version int64, key string, value any, ttl time.Duration) (bool, error)
}

// Publisher is satisfied by *nats.Conn
type Publisher interface {
	Publish(subject string, data []byte) error
}

type redisCache struct{}

func (redisCache) Get(ctx context.Context, key string, dest any) error {
	return pkg.RedisGet(ctx, key, dest)
}

func (redisCache) Delete(ctx context.Context, keys ...string) error {
	return pkg.RedisDelete(ctx, keys...)
}

func (redisCache) Version(ctx context.Context, key string) (int64, error) {
	return pkg.RedisVersion(ctx, key)
}

func (redisCache) BumpVersion(ctx context.Context, key string) error {
	return pkg.RedisBumpVersion(ctx, key)
}

func (redisCache) SetIfVersion(ctx context.Context, versionKey string, version int64, key string, value any, ttl time.Duration) (bool, error) {
	return pkg.RedisSetIfVersion(ctx, versionKey, version, key, value, ttl)
}

// PositionService stores the user-adjusted node positions. Postgres is the
// source of truth, redis caches the per-pipeline map and NATS tells the other
// instances about every change.
type PositionService struct {
	repo      positionRepository
	cache     positionCache
	publisher Publisher
	sinks     []realtime.LayoutSink
	tenantID  string
	origin    string
	ttl       time.Duration
	logger    zerolog.Logger
}

func NewPositionService() *PositionService {
	cfg := dashboard.GetConfig()
	var publisher Publisher
	if dashboard.Nats != nil {
		publisher = dashboard.Nats
	}
	return newPositionService(repo.NewPositionRepository(), redisCache{}, publisher, cfg, dashboard.Logger)
}

func newPositionService(r positionRepository, cache positionCache, publisher Publisher, cfg dashboard.AppConfig, logger zerolog.Logger) *PositionService {
	return &PositionService{
		repo:      r,
		cache:     cache,
		publisher: publisher,
		tenantID:  cfg.NatsConfig.TenantID,
		origin:    cfg.InstanceID,
		ttl:       cfg.EditorConfig.PositionCacheTTL,
		logger:    logger,
	}
}

func positionsKey(pipelineID uint) string {
	return fmt.Sprintf("pipeline:%d:positions", pipelineID)
}

// positionsVersionKey changes on every write, so a map read from the
// database before a write is never cached after it
func positionsVersionKey(pipelineID uint) string {
	return fmt.Sprintf("pipeline:%d:positions:version", pipelineID)
}

// Load returns the overrides of a pipeline, from the cache when possible
func (slf *PositionService) Load(ctx context.Context, pipelineID uint) (layout.Overrides, error) {
	key := positionsKey(pipelineID)
	versionKey := positionsVersionKey(pipelineID)

	var cached layout.Overrides
	err := slf.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached.Clone(), nil
	}
	if !pkg.IsRedisNil(err) {
		slf.logger.Warn().Err(err).Uint("pipelineId", pipelineID).Msg("Position cache read failed")
	}

	version, versionErr := slf.cache.Version(ctx, versionKey)
	rows, err := slf.repo.FindByPipeline(ctx, pipelineID)
	if err != nil {
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Msg("Error loading node positions")
		return nil, fmt.Errorf("load positions of pipeline %d: %w", pipelineID, err)
	}

	overrides := make(layout.Overrides, len(rows))
	for _, row := range rows {
		overrides[row.NodeID] = geom.Pt(row.X, row.Y)
	}
	if versionErr != nil {
		return overrides, nil
	}
	stored, err := slf.cache.SetIfVersion(ctx, versionKey, version, key, overrides, slf.ttl)
	if err != nil {
		slf.logger.Warn().Err(err).Uint("pipelineId", pipelineID).Msg("Position cache write failed")
	} else if !stored {
		slf.logger.Debug().Uint("pipelineId", pipelineID).Msg("Positions changed while loading, not cached")
	}
	return overrides, nil
}

// Save upserts one override, drops the cached map and notifies the other instances
func (slf *PositionService) Save(ctx context.Context, pipelineID uint, nodeID uint, p geom.Point) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, p.X, p.Y)
	}

	row := models.NodePosition{PipelineID: pipelineID, NodeID: nodeID, X: p.X, Y: p.Y}
	if err := slf.repo.Upsert(ctx, row); err != nil {
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Uint("nodeId", nodeID).Msg("Error saving node position")
		return fmt.Errorf("save position of node %d: %w", nodeID, err)
	}

	slf.invalidate(ctx, pipelineID)
	slf.publish(realtime.LayoutEvent{PipelineID: pipelineID, NodeID: nodeID, X: p.X, Y: p.Y})
	return nil
}

// Reset forgets every override of the pipeline, so the grid applies again
func (slf *PositionService) Reset(ctx context.Context, pipelineID uint) error {
	removed, err := slf.repo.DeleteByPipeline(ctx, pipelineID)
	if err != nil {
		slf.logger.Error().Err(err).Uint("pipelineId", pipelineID).Msg("Error resetting node positions")
		return fmt.Errorf("reset positions of pipeline %d: %w", pipelineID, err)
	}

	slf.invalidate(ctx, pipelineID)
	slf.publish(realtime.LayoutEvent{PipelineID: pipelineID, Reset: true})
	slf.logger.Info().Uint("pipelineId", pipelineID).Int64("removed", removed).Msg("Node positions reset")
	return nil
}

// invalidate bumps the version before dropping the map, a load that read the
// old rows then fails its conditional write
func (slf *PositionService) invalidate(ctx context.Context, pipelineID uint) {
	if err := slf.cache.BumpVersion(ctx, positionsVersionKey(pipelineID)); err != nil {
		slf.logger.Warn().Err(err).Uint("pipelineId", pipelineID).Msg("Position cache version bump failed")
	}
	if err := slf.cache.Delete(ctx, positionsKey(pipelineID)); err != nil {
		slf.logger.Warn().Err(err).Uint("pipelineId", pipelineID).Msg("Position cache invalidation failed")
	}
}

// AddSink registers a local receiver for every layout event this service
// publishes, whether or not NATS is enabled
func (slf *PositionService) AddSink(sink realtime.LayoutSink) {
	slf.sinks = append(slf.sinks, sink)
}

// publish never fails the caller: the write already succeeded
func (slf *PositionService) publish(ev realtime.LayoutEvent) {
	ev.Origin = slf.origin
	for _, sink := range slf.sinks {
		sink.PublishLayout(ev)
	}

	if slf.publisher == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slf.logger.Error().Err(err).Msg("Failed to marshal layout event")
		return
	}
	subject := realtime.LayoutSubject(slf.tenantID, ev.PipelineID)
	if err = slf.publisher.Publish(subject, data); err != nil {
		slf.logger.Warn().Err(err).Str("subject", subject).Msg("Layout notification failed")
	}
}
