// Package position defines where user-adjusted node positions live and how
// the editor hands them over without waiting for the write.
package position

import (
	"context"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
	"sync"
)

// Store loads and saves per-node position overrides of a pipeline
type Store interface {
	Load(ctx context.Context, pipelineID uint) (layout.Overrides, error)
	Save(ctx context.Context, pipelineID uint, nodeID uint, p geom.Point) error
}

// Resetter is implemented by stores able to forget every override of a pipeline
type Resetter interface {
	Reset(ctx context.Context, pipelineID uint) error
}

// Memory is a Store kept in process memory. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	pipelines map[uint]layout.Overrides
	// Err, when set, is returned by every Save
	err error
}

func NewMemory() *Memory {
	return &Memory{pipelines: make(map[uint]layout.Overrides)}
}

// FailWith makes every following Save return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Load(ctx context.Context, pipelineID uint) (layout.Overrides, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pipelines[pipelineID].Clone(), nil
}

func (m *Memory) Save(ctx context.Context, pipelineID uint, nodeID uint, p geom.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	o, ok := m.pipelines[pipelineID]
	if !ok {
		o = layout.Overrides{}
		m.pipelines[pipelineID] = o
	}
	o[nodeID] = p
	return nil
}

func (m *Memory) Reset(ctx context.Context, pipelineID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pipelines, pipelineID)
	return nil
}
