package websocket

import (
	"context"
	"dashboard/internal/api/models"
	"dashboard/internal/engine/editor"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
	"dashboard/internal/realtime"
	"dashboard/pkg"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnsupportedMessage = errors.New("unsupported message type")

// GraphSource loads pipelines for editor sessions
type GraphSource interface {
	Snapshot(ctx context.Context, pipelineID uint) ([]models.Unit, layout.Overrides, error)
	Editor(pipelineID uint, saver editor.Saver, hooks editor.Hooks, logger *zerolog.Logger) *editor.Controller
}

// MessageProcessor turns client messages into editor events. Each client owns
// its controller; the processor itself keeps no session state.
type MessageProcessor struct {
	graphs      GraphSource
	saver       editor.Saver
	loadTimeout time.Duration
	logger      zerolog.Logger
}

// NewMessageProcessor creates a new message processor
func NewMessageProcessor(graphs GraphSource, saver editor.Saver, logger zerolog.Logger) *MessageProcessor {
	return &MessageProcessor{
		graphs:      graphs,
		saver:       saver,
		loadTimeout: 10 * time.Second,
		logger:      logger,
	}
}

// Open loads the pipeline into a new controller. Without canEdit the session
// gets no saver: the user can still arrange their own view but nothing is
// persisted or announced to the other editors.
func (p *MessageProcessor) Open(ctx context.Context, pipelineID uint, canEdit bool, logger *zerolog.Logger) (*editor.Controller, error) {
	units, overrides, err := p.graphs.Snapshot(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	var saver editor.Saver
	if canEdit {
		saver = p.saver
	}
	ctrl := p.graphs.Editor(pipelineID, saver, editor.Hooks{}, logger)
	ctrl.Reload(units, overrides)
	return ctrl, nil
}

// ProcessMessage feeds a message to the client's controller and returns the
// replies for that client
func (p *MessageProcessor) ProcessMessage(ctrl *editor.Controller, msg *Message) ([]Message, error) {
	switch msg.Type {
	case MessageTypePing:
		return []Message{{Type: MessageTypePong, PipelineID: msg.PipelineID, Timestamp: time.Now()}}, nil
	case MessageTypeReload:
		return p.processReload(ctrl, msg)
	case MessageTypeMeasure:
		return p.processMeasure(ctrl, msg)
	}

	ev, err := p.toEvent(msg)
	if err != nil {
		return nil, err
	}
	return sceneReply(ctrl, ctrl.Dispatch(ev)), nil
}

// ApplyLayout replays a position saved elsewhere on the client's controller
func (p *MessageProcessor) ApplyLayout(ctrl *editor.Controller, ev realtime.LayoutEvent) []Message {
	if ev.Reset {
		frame := ctrl.ResetLayout(nil)
		reset := Message{Type: MessageTypePositionsReset, PipelineID: ev.PipelineID, Username: "system", Timestamp: time.Now()}
		return append([]Message{reset}, sceneReply(ctrl, frame)...)
	}

	frame := ctrl.MoveNode(ev.NodeID, geom.Pt(ev.X, ev.Y))
	changed := Message{
		Type:       MessageTypePositionChanged,
		PipelineID: ev.PipelineID,
		Username:   "system",
		Timestamp:  time.Now(),
		Data:       PositionData{NodeID: ev.NodeID, X: ev.X, Y: ev.Y},
	}
	return append([]Message{changed}, sceneReply(ctrl, frame)...)
}

func (p *MessageProcessor) processReload(ctrl *editor.Controller, msg *Message) ([]Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.loadTimeout)
	defer cancel()

	units, overrides, err := p.graphs.Snapshot(ctx, msg.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("reload pipeline %d: %w", msg.PipelineID, err)
	}
	ctrl.Reload(units, overrides)

	p.logger.Debug().
		Uint("pipelineId", msg.PipelineID).
		Uint("userId", msg.UserID).
		Msg("Editor reloaded via WebSocket")
	return []Message{NewSceneMessage(ctrl.Scene())}, nil
}

func (p *MessageProcessor) processMeasure(ctrl *editor.Controller, msg *Message) ([]Message, error) {
	var data MeasureData
	if err := p.validateData(msg, &data); err != nil {
		return nil, err
	}

	if len(data.Nodes) > 0 {
		sizes := make(map[uint]geom.Size, len(data.Nodes))
		for _, n := range data.Nodes {
			sizes[n.NodeID] = geom.Size{Width: n.Width, Height: n.Height}
		}
		return sceneReply(ctrl, ctrl.MeasureAll(sizes)), nil
	}

	if data.NodeID == 0 {
		return nil, errors.New("invalid message data: nodeId is required")
	}
	frame := ctrl.Dispatch(editor.Measure{NodeID: data.NodeID, Size: geom.Size{Width: data.Width, Height: data.Height}})
	return sceneReply(ctrl, frame), nil
}

func (p *MessageProcessor) toEvent(msg *Message) (editor.Event, error) {
	switch msg.Type {
	case MessageTypePointerDown:
		var data PointerData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.PointerDown{Screen: geom.Pt(data.X, data.Y), Button: editor.Button(data.Button), Modifiers: data.modifiers()}, nil
	case MessageTypePointerMove:
		var data PointerData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.PointerMove{Screen: geom.Pt(data.X, data.Y)}, nil
	case MessageTypePointerUp:
		var data PointerData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.PointerUp{Screen: geom.Pt(data.X, data.Y)}, nil
	case MessageTypePointerLeave:
		return editor.PointerLeave{}, nil
	case MessageTypeWheel:
		var data WheelData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.Wheel{Screen: geom.Pt(data.X, data.Y), DeltaY: data.DeltaY}, nil
	case MessageTypePinch:
		var data PinchData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.Pinch{Center: geom.Pt(data.X, data.Y), Scale: data.Scale}, nil
	case MessageTypeKey:
		var data KeyData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.Key{Key: data.Key}, nil
	case MessageTypeResize:
		var data ResizeData
		if err := p.validateData(msg, &data); err != nil {
			return nil, err
		}
		return editor.Resize{Size: geom.Size{Width: data.Width, Height: data.Height}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Type)
	}
}

func (p *MessageProcessor) validateData(msg *Message, out any) error {
	dataBytes, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal message data: %w", err)
	}

	if err = json.Unmarshal(dataBytes, out); err != nil {
		return fmt.Errorf("invalid message data: %w", err)
	}

	if err = pkg.Validate(out); err != nil {
		return fmt.Errorf("invalid message data: %w", err)
	}
	return nil
}

func (d PointerData) modifiers() editor.Modifiers {
	var m editor.Modifiers
	if d.Shift {
		m |= editor.ModShift
	}
	if d.Alt {
		m |= editor.ModAlt
	}
	if d.Ctrl {
		m |= editor.ModCtrl
	}
	if d.Meta {
		m |= editor.ModMeta
	}
	return m
}

// sceneReply sends a new scene only when the frame changed something visible
func sceneReply(ctrl *editor.Controller, frame editor.Frame) []Message {
	if !frame.Redraw {
		return nil
	}
	return []Message{NewSceneMessage(ctrl.Scene())}
}
