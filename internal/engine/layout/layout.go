// Package layout places pipeline nodes on a fixed-column grid and merges the
// positions saved by users on top of it.
package layout

import (
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"errors"
	"fmt"
	"maps"
)

var ErrInvalidConfig = errors.New("invalid layout config")

// Config holds the grid constants
type Config struct {
	Columns    int
	CellWidth  float64
	CellHeight float64
	OriginX    float64
	OriginY    float64
	// Estimated node size used when nothing measured the nodes
	NodeWidth  float64
	NodeHeight float64
}

func DefaultConfig() Config {
	return Config{
		Columns:    4,
		CellWidth:  240,
		CellHeight: 140,
		NodeWidth:  180,
		NodeHeight: 64,
	}
}

// Validate checks that the grid is usable
func (c Config) Validate() error {
	if c.Columns <= 0 {
		return fmt.Errorf("%w: columns must be positive, got %d", ErrInvalidConfig, c.Columns)
	}
	if c.CellWidth <= 0 || c.CellHeight <= 0 {
		return fmt.Errorf("%w: cell pitch must be positive, got %gx%g", ErrInvalidConfig, c.CellWidth, c.CellHeight)
	}
	if c.NodeWidth < 0 || c.NodeHeight < 0 {
		return fmt.Errorf("%w: node size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Overrides maps a node id to a position chosen by the user
type Overrides map[uint]geom.Point

// Clone returns an independent copy
func (o Overrides) Clone() Overrides {
	if o == nil {
		return Overrides{}
	}
	return maps.Clone(o)
}

// Merge returns a copy of o with every entry of other applied on top
func (o Overrides) Merge(other Overrides) Overrides {
	out := o.Clone()
	maps.Copy(out, other)
	return out
}

// Engine computes node positions. It holds no state besides its config.
type Engine struct {
	config Config
}

// New returns an engine for a validated config
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: cfg}, nil
}

func (slf *Engine) Config() Config {
	return slf.config
}

// Cell returns the default position of the node at the given traversal index
func (slf *Engine) Cell(index int) geom.Point {
	col := index % slf.config.Columns
	row := index / slf.config.Columns
	return geom.Point{
		X: slf.config.OriginX + float64(col)*slf.config.CellWidth,
		Y: slf.config.OriginY + float64(row)*slf.config.CellHeight,
	}
}

// Compute returns the position of every id in order. An override is used as
// is; every other node gets its grid cell. The result only depends on the
// arguments.
func (slf *Engine) Compute(order []uint, overrides Overrides) map[uint]geom.Point {
	out := make(map[uint]geom.Point, len(order))
	for i, id := range order {
		if p, ok := overrides[id]; ok {
			out[id] = p
			continue
		}
		out[id] = slf.Cell(i)
	}
	return out
}

// Apply writes the computed positions into the graph nodes
func (slf *Engine) Apply(g *graph.Graph, overrides Overrides) {
	for id, p := range slf.Compute(g.Order(), overrides) {
		g.SetPosition(id, p)
	}
}

// EstimateSizes gives every unmeasured node the configured node size
func (slf *Engine) EstimateSizes(g *graph.Graph) {
	size := geom.Size{Width: slf.config.NodeWidth, Height: slf.config.NodeHeight}
	if size.Empty() {
		return
	}
	for _, n := range g.Nodes() {
		if !n.Measured {
			g.SetSize(n.ID, size)
		}
	}
}

// Defaults returns only the grid positions, ignoring overrides. Used to tell
// which saved positions are still different from the default.
func (slf *Engine) Defaults(order []uint) map[uint]geom.Point {
	return slf.Compute(order, nil)
}
