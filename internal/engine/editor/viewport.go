package editor

import (
	"dashboard/internal/engine/geom"
	"math"
)

// Viewport maps logical coordinates to the screen:
//
//	logical = (screen - Origin) / Zoom
//	screen  = logical * Zoom + Origin
type Viewport struct {
	Origin  geom.Point `json:"origin"`
	Zoom    float64    `json:"zoom"`
	MinZoom float64    `json:"minZoom"`
	MaxZoom float64    `json:"maxZoom"`
}

// NewViewport returns a viewport at the origin with zoom 1 clamped to the bounds
func NewViewport(minZoom, maxZoom float64) Viewport {
	if minZoom <= 0 {
		minZoom = DefaultMinZoom
	}
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	return Viewport{Zoom: geom.Clamp(1, minZoom, maxZoom), MinZoom: minZoom, MaxZoom: maxZoom}
}

func (v Viewport) ScreenToLogical(p geom.Point) geom.Point {
	return p.Sub(v.Origin).Div(v.Zoom)
}

func (v Viewport) LogicalToScreen(p geom.Point) geom.Point {
	return p.Scale(v.Zoom).Add(v.Origin)
}

// ScreenDelta converts a pointer movement into a logical displacement
func (v Viewport) ScreenDelta(d geom.Point) geom.Point {
	return d.Div(v.Zoom)
}

// RectToScreen maps a logical box to screen space
func (v Viewport) RectToScreen(r geom.Rect) geom.Rect {
	o := v.LogicalToScreen(r.Origin())
	return geom.Rect{X: o.X, Y: o.Y, Width: r.Width * v.Zoom, Height: r.Height * v.Zoom}
}

// Pan moves the canvas origin by a screen delta
func (v *Viewport) Pan(d geom.Point) {
	v.Origin = v.Origin.Add(d)
}

// ZoomAt sets the zoom, clamped, keeping the logical point under the screen
// anchor visually fixed. It reports whether the zoom changed.
func (v *Viewport) ZoomAt(anchor geom.Point, zoom float64) bool {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return false
	}
	zoom = geom.Clamp(zoom, v.MinZoom, v.MaxZoom)
	if zoom == v.Zoom {
		return false
	}
	logical := v.ScreenToLogical(anchor)
	v.Zoom = zoom
	v.Origin = anchor.Sub(logical.Scale(zoom))
	return true
}

// Fit zooms and pans so the logical box fills a screen of the given size,
// leaving padding pixels on each side.
func (v *Viewport) Fit(bounds geom.Rect, screen geom.Size, padding float64) bool {
	if screen.Empty() || bounds.Width <= 0 || bounds.Height <= 0 {
		return false
	}
	availW := math.Max(screen.Width-2*padding, 1)
	availH := math.Max(screen.Height-2*padding, 1)
	zoom := geom.Clamp(math.Min(availW/bounds.Width, availH/bounds.Height), v.MinZoom, v.MaxZoom)

	center := bounds.Center()
	v.Zoom = zoom
	v.Origin = geom.Point{
		X: screen.Width/2 - center.X*zoom,
		Y: screen.Height/2 - center.Y*zoom,
	}
	return true
}
