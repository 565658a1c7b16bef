package websocket

import (
	"dashboard/internal/engine/editor"
	errors2 "errors"
	"time"
)

// Message is the base message structure
// Data field uses 'any' to allow different types through channels
type Message struct {
	Type       MessageType `json:"type"`
	PipelineID uint        `json:"pipelineId,omitempty"`
	UserID     uint        `json:"userId"`
	Username   string      `json:"username"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
}

// PointerData carries screen coordinates of pointer.down, pointer.move and pointer.up
type PointerData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Shift  bool    `json:"shift,omitempty"`
	Alt    bool    `json:"alt,omitempty"`
	Ctrl   bool    `json:"ctrl,omitempty"`
	Meta   bool    `json:"meta,omitempty"`
}

type WheelData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY"`
}

type PinchData struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale" validate:"gt=0"`
}

type KeyData struct {
	Key string `json:"key" validate:"required"`
}

type NodeSize struct {
	NodeID uint    `json:"nodeId" validate:"required"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// MeasureData reports one node size, or many at once through Nodes
type MeasureData struct {
	NodeID uint       `json:"nodeId"`
	Width  float64    `json:"width" validate:"gte=0"`
	Height float64    `json:"height" validate:"gte=0"`
	Nodes  []NodeSize `json:"nodes,omitempty" validate:"dive"`
}

type ResizeData struct {
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// PositionData is the payload of position.changed
type PositionData struct {
	NodeID uint    `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// UserInfo represents user information in the room
type UserInfo struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Error         string `json:"error,omitempty"`
	CustomMessage string `json:"customMessage"`
}

type NoticeMessage struct {
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message
func NewErrorMessage(pipelineID uint, userID uint, username string, errorText string, errors ...error) Message {
	data := ErrorMessage{CustomMessage: errorText}
	if err := errors2.Join(errors...); err != nil {
		data.Error = err.Error()
	}
	return Message{
		Type:       MessageTypeError,
		PipelineID: pipelineID,
		UserID:     userID,
		Username:   username,
		Timestamp:  time.Now(),
		Data:       data,
	}
}

// NewNoticeMessage is a system message shown to every editor of the pipeline
func NewNoticeMessage(pipelineID uint, text string) Message {
	return Message{
		Type:       MessageTypeNotice,
		PipelineID: pipelineID,
		Username:   "system",
		Timestamp:  time.Now(),
		Data:       NoticeMessage{Message: text},
	}
}

func NewSceneMessage(scene editor.Scene) Message {
	return Message{
		Type:       MessageTypeScene,
		PipelineID: scene.PipelineID,
		Username:   "system",
		Timestamp:  time.Now(),
		Data:       scene,
	}
}

// NewUserJoinMessage creates a new user join message
func NewUserJoinMessage(pipelineID uint, userID uint, username string, userInfo UserInfo) Message {
	return Message{
		Type:       MessageTypeUserJoin,
		PipelineID: pipelineID,
		UserID:     userID,
		Username:   username,
		Timestamp:  time.Now(),
		Data:       userInfo,
	}
}

// NewUserLeaveMessage creates a new user leave message
func NewUserLeaveMessage(pipelineID uint, userID uint, username string, userInfo UserInfo) Message {
	return Message{
		Type:       MessageTypeUserLeave,
		PipelineID: pipelineID,
		UserID:     userID,
		Username:   username,
		Timestamp:  time.Now(),
		Data:       userInfo,
	}
}
