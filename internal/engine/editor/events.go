package editor

import "dashboard/internal/engine/geom"

type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// Modifiers is a bit set of the keys held during a pointer event
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModCtrl
	ModMeta
)

// ModConnect is the modifier that turns a click on the selected node into
// the start of a new edge.
const ModConnect = ModAlt

func (m Modifiers) Has(o Modifiers) bool {
	return m&o == o && o != 0
}

// Key names follow the DOM KeyboardEvent.key values
const (
	KeyEscape    = "Escape"
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyConnect   = "c"
	KeyFit       = "f"
)

// Event is any input dispatched to the controller
type Event interface {
	isEvent()
}

type PointerDown struct {
	Screen    geom.Point
	Button    Button
	Modifiers Modifiers
}

type PointerMove struct {
	Screen geom.Point
}

type PointerUp struct {
	Screen geom.Point
}

// PointerLeave is sent when the pointer leaves the canvas or the capture is lost
type PointerLeave struct{}

// Wheel zooms around the pointer. Negative DeltaY zooms in.
type Wheel struct {
	Screen geom.Point
	DeltaY float64
}

// Pinch multiplies the zoom by Scale around Center
type Pinch struct {
	Center geom.Point
	Scale  float64
}

type Key struct {
	Key string
}

// Measure reports the size of a rendered node
type Measure struct {
	NodeID uint
	Size   geom.Size
}

// Resize reports the size of the canvas on screen
type Resize struct {
	Size geom.Size
}

func (PointerDown) isEvent()  {}
func (PointerMove) isEvent()  {}
func (PointerUp) isEvent()    {}
func (PointerLeave) isEvent() {}
func (Wheel) isEvent()        {}
func (Pinch) isEvent()        {}
func (Key) isEvent()          {}
func (Measure) isEvent()      {}
func (Resize) isEvent()       {}
