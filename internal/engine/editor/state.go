package editor

import (
	"dashboard/internal/engine/geom"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type StateKind int

const (
	Idle StateKind = iota
	PanningCanvas
	DraggingNode
	ConnectingEdge
	Selected
)

func (k StateKind) String() string {
	switch k {
	case Idle:
		return "idle"
	case PanningCanvas:
		return "panning"
	case DraggingNode:
		return "dragging"
	case ConnectingEdge:
		return "connecting"
	case Selected:
		return "selected"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// State is the controller state. NodeID is the dragged, selected or source
// node depending on Kind.
type State struct {
	Kind   StateKind
	NodeID uint
}

func (s State) String() string {
	switch s.Kind {
	case DraggingNode, ConnectingEdge, Selected:
		return fmt.Sprintf("%s(%d)", s.Kind, s.NodeID)
	default:
		return s.Kind.String()
	}
}

type GestureKind int

const (
	GesturePan GestureKind = iota
	GestureDrag
	GestureConnect
)

func (k GestureKind) String() string {
	switch k {
	case GesturePan:
		return "pan"
	case GestureDrag:
		return "drag"
	case GestureConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// Session is one pointer gesture, from pointer down (or connect start) to
// release, cancel or abort. It keeps what is needed to undo the gesture.
type Session struct {
	ID     string
	Kind   GestureKind
	NodeID uint

	StartScreen geom.Point
	LastScreen  geom.Point
	// StartPosition is the node position before a drag
	StartPosition geom.Point
	// StartOrigin is the canvas origin before a pan
	StartOrigin geom.Point
	Moved       bool
	StartedAt   time.Time
}

func newSession(kind GestureKind, nodeID uint, screen geom.Point) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Kind:        kind,
		NodeID:      nodeID,
		StartScreen: screen,
		LastScreen:  screen,
		StartedAt:   time.Now(),
	}
}

// Outcome tells how a session ended
type Outcome int

const (
	Committed Outcome = iota
	Cancelled
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}
