package websocket

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Editor input
	MessageTypePointerDown  MessageType = "pointer.down"
	MessageTypePointerMove  MessageType = "pointer.move"
	MessageTypePointerUp    MessageType = "pointer.up"
	MessageTypePointerLeave MessageType = "pointer.leave"
	MessageTypeWheel        MessageType = "wheel"
	MessageTypePinch        MessageType = "pinch"
	MessageTypeKey          MessageType = "key"
	MessageTypeMeasure      MessageType = "measure"
	MessageTypeResize       MessageType = "resize"
	MessageTypeReload       MessageType = "reload"

	// Editor output
	MessageTypeScene           MessageType = "scene"
	MessageTypePositionChanged MessageType = "position.changed"
	MessageTypePositionsReset  MessageType = "positions.reset"
	MessageTypeNotice          MessageType = "notice"

	// User presence
	MessageTypeUserJoin  MessageType = "user.join"
	MessageTypeUserLeave MessageType = "user.leave"

	// System messages
	MessageTypeError MessageType = "error"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
)
