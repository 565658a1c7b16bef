package geom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Side identifies which edge of a box a connection leaves or enters.
type Side string

const (
	SideNone   Side = ""
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	default:
		return SideNone
	}
}

// Horizontal reports whether the side is left or right.
func (s Side) Horizontal() bool {
	return s == SideLeft || s == SideRight
}

// Curve is a cubic bezier segment between two anchor points.
type Curve struct {
	Start     Point `json:"start"`
	End       Point `json:"end"`
	Control1  Point `json:"control1"`
	Control2  Point `json:"control2"`
	StartSide Side  `json:"startSide,omitempty"`
	EndSide   Side  `json:"endSide,omitempty"`
}

// PointAt evaluates the curve at t in [0, 1].
func (c Curve) PointAt(t float64) Point {
	t = Clamp(t, 0, 1)
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	d := 3 * u * t * t
	e := t * t * t
	return Point{
		X: a*c.Start.X + b*c.Control1.X + d*c.Control2.X + e*c.End.X,
		Y: a*c.Start.Y + b*c.Control1.Y + d*c.Control2.Y + e*c.End.Y,
	}
}

// TangentAt returns the first derivative at t. It is the zero point for a
// degenerate curve.
func (c Curve) TangentAt(t float64) Point {
	t = Clamp(t, 0, 1)
	u := 1 - t
	p0 := c.Control1.Sub(c.Start).Scale(3 * u * u)
	p1 := c.Control2.Sub(c.Control1).Scale(6 * u * t)
	p2 := c.End.Sub(c.Control2).Scale(3 * t * t)
	return p0.Add(p1).Add(p2)
}

// AngleAt returns the direction of travel at t in radians, used to orient
// arrow heads. A degenerate curve falls back to the chord direction.
func (c Curve) AngleAt(t float64) float64 {
	d := c.TangentAt(t)
	if d.IsZero() {
		d = c.End.Sub(c.Start)
	}
	return math.Atan2(d.Y, d.X)
}

// Bounds returns the box of the control polygon, which always contains the curve.
func (c Curve) Bounds() Rect {
	return BoundsOf(c.Start, c.Control1, c.Control2, c.End)
}

// Length approximates the arc length with the given number of chords.
func (c Curve) Length(segments int) float64 {
	if segments < 1 {
		segments = 1
	}
	var total float64
	prev := c.Start
	for i := 1; i <= segments; i++ {
		p := c.PointAt(float64(i) / float64(segments))
		total += prev.Dist(p)
		prev = p
	}
	return total
}

// Distance approximates the shortest distance from p to the curve.
func (c Curve) Distance(p Point, segments int) float64 {
	if segments < 1 {
		segments = 1
	}
	best := math.Inf(1)
	prev := c.Start
	for i := 1; i <= segments; i++ {
		next := c.PointAt(float64(i) / float64(segments))
		if d := segmentDistance(p, prev, next); d < best {
			best = d
		}
		prev = next
	}
	return best
}

// Transform maps every point of the curve through fn.
func (c Curve) Transform(fn func(Point) Point) Curve {
	c.Start = fn(c.Start)
	c.End = fn(c.End)
	c.Control1 = fn(c.Control1)
	c.Control2 = fn(c.Control2)
	return c
}

// Path renders the curve as SVG path data.
func (c Curve) Path() string {
	var b strings.Builder
	fmt.Fprintf(&b, "M %s %s C %s %s, %s %s, %s %s",
		num(c.Start.X), num(c.Start.Y),
		num(c.Control1.X), num(c.Control1.Y),
		num(c.Control2.X), num(c.Control2.Y),
		num(c.End.X), num(c.End.Y))
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func segmentDistance(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Dist(a)
	}
	t := Clamp(((p.X-a.X)*ab.X+(p.Y-a.Y)*ab.Y)/l2, 0, 1)
	return p.Dist(a.Add(ab.Scale(t)))
}
