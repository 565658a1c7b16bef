package editor

import (
	"dashboard/internal/engine/geom"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewport_RoundTrip(t *testing.T) {
	v := Viewport{Origin: geom.Pt(40, -20), Zoom: 1.5, MinZoom: 0.1, MaxZoom: 2}

	for _, p := range []geom.Point{geom.Pt(0, 0), geom.Pt(123.5, -7), geom.Pt(-300, 900)} {
		back := v.ScreenToLogical(v.LogicalToScreen(p))
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
	assert.Equal(t, geom.Pt(100, 100), v.ScreenToLogical(geom.Pt(190, 130)))
	assert.Equal(t, geom.Rect{X: 40, Y: -20, Width: 15, Height: 30}, v.RectToScreen(geom.Rect{Width: 10, Height: 20}))
}

func TestNewViewport(t *testing.T) {
	v := NewViewport(0, 0)
	assert.Equal(t, DefaultMinZoom, v.MinZoom)
	assert.Equal(t, DefaultMinZoom, v.MaxZoom)
	assert.Equal(t, DefaultMinZoom, v.Zoom)

	v = NewViewport(0.5, 4)
	assert.Equal(t, 1.0, v.Zoom)
}

func TestViewport_ZoomAt(t *testing.T) {
	v := NewViewport(DefaultMinZoom, DefaultMaxZoom)

	assert.False(t, v.ZoomAt(geom.Pt(10, 10), math.NaN()))
	assert.False(t, v.ZoomAt(geom.Pt(10, 10), 1))
	assert.True(t, v.ZoomAt(geom.Pt(10, 10), 2))
	assert.Equal(t, geom.Pt(-10, -10), v.Origin)
	assert.Equal(t, geom.Pt(10, 10), v.LogicalToScreen(geom.Pt(10, 10)))
}

func TestViewport_Fit(t *testing.T) {
	v := NewViewport(DefaultMinZoom, DefaultMaxZoom)

	assert.False(t, v.Fit(geom.Rect{Width: 10, Height: 10}, geom.Size{}, 0))
	assert.False(t, v.Fit(geom.Rect{}, geom.Size{Width: 100, Height: 100}, 0))
	assert.True(t, v.Fit(geom.Rect{X: 0, Y: 0, Width: 10, Height: 10}, geom.Size{Width: 100, Height: 100}, 0))
	assert.Equal(t, DefaultMaxZoom, v.Zoom, "fit never zooms past the maximum")
	assert.Equal(t, geom.Pt(40, 40), v.Origin)
}
