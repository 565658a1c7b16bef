package websocket

import (
	"dashboard/internal/engine/editor"
	"dashboard/internal/realtime"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

// Client is one editor connection. Its controller is only touched by the
// process worker.
type Client struct {
	ID           string
	UserID       uint
	Username     string
	PipelineID   uint
	Color        string
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan Message
	Processor    *MessageProcessor
	ProcessQueue chan Message

	// Remote receives positions saved by any editor of the pipeline. It is
	// never closed.
	Remote chan realtime.LayoutEvent
	Editor *editor.Controller
	Logger zerolog.Logger
}

func NewClient(id string, userID uint, username string, pipelineID uint, hub *Hub, conn *websocket.Conn, processor *MessageProcessor, ctrl *editor.Controller, logger zerolog.Logger) *Client {
	client := &Client{
		ID:           id,
		UserID:       userID,
		Username:     username,
		PipelineID:   pipelineID,
		Color:        generateUserColor(userID),
		Hub:          hub,
		Conn:         conn,
		Send:         make(chan Message, 256),
		Processor:    processor,
		ProcessQueue: make(chan Message, 256),
		Remote:       make(chan realtime.LayoutEvent, 64),
		Editor:       ctrl,
		Logger:       logger.With().Str("clientId", id).Uint("pipelineId", pipelineID).Logger(),
	}

	// Start the sequential processor worker
	go client.processWorker()

	return client
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.stop:
		}
		close(c.ProcessQueue) // Close the queue to stop the worker
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Error().Err(err).Msg("WebSocket read error")
			}
			break
		}

		var msg Message
		if err = json.Unmarshal(messageBytes, &msg); err != nil {
			c.Logger.Error().Err(err).Msg("Failed to unmarshal message")
			c.sendError("Invalid message format", err)
			continue
		}

		if !c.accept(&msg) {
			continue
		}

		// Fast path: answered right here
		if !c.requiresProcessing(msg.Type) {
			c.trySend(Message{Type: MessageTypePong, PipelineID: c.PipelineID, Timestamp: time.Now()})
			continue
		}

		// Editor events go through the worker so they reach the controller in order
		select {
		case c.ProcessQueue <- msg:
		default:
			c.Logger.Warn().
				Str("type", string(msg.Type)).
				Msg("Process queue full, dropping message")
			c.sendError("Server is busy, please try again")
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The worker closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			messageBytes, err := json.Marshal(message)
			if err != nil {
				c.Logger.Error().Err(err).Msg("Failed to marshal message")
				continue
			}

			w.Write(messageBytes)

			// Add queued messages to the current websocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				msg, ok := <-c.Send
				if !ok {
					break
				}
				msgBytes, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				w.Write([]byte{'\n'})
				w.Write(msgBytes)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// accept stamps the sender on the message and rejects other pipelines
func (c *Client) accept(msg *Message) bool {
	if msg.PipelineID != 0 && msg.PipelineID != c.PipelineID {
		c.sendError("Message pipeline ID does not match connection pipeline ID")
		return false
	}

	msg.UserID = c.UserID
	msg.Username = c.Username
	msg.PipelineID = c.PipelineID
	msg.Timestamp = time.Now()
	return true
}

// sendError sends an error message to the client
func (c *Client) sendError(errorMsg string, errs ...error) {
	c.trySend(NewErrorMessage(c.PipelineID, c.UserID, c.Username, errorMsg, errs...))
}

// trySend drops the message when the writer cannot keep up
func (c *Client) trySend(msg Message) {
	select {
	case c.Send <- msg:
	default:
		c.Logger.Warn().Str("type", string(msg.Type)).Msg("Client send buffer full, message dropped")
	}
}

// processWorker applies editor events and remote layout changes one at a time.
// It owns the controller and closes Send when the connection is gone.
func (c *Client) processWorker() {
	defer close(c.Send)
	c.Logger.Debug().Msg("Process worker started")

	if c.Editor != nil {
		c.trySend(NewSceneMessage(c.Editor.Scene()))
	}

	for {
		select {
		case msg, ok := <-c.ProcessQueue:
			if !ok {
				c.Logger.Debug().Msg("Process worker stopped")
				return
			}
			c.process(msg)

		case ev := <-c.Remote:
			if c.Editor == nil || c.Processor == nil {
				continue
			}
			for _, reply := range c.Processor.ApplyLayout(c.Editor, ev) {
				c.trySend(reply)
			}
		}
	}
}

func (c *Client) process(msg Message) {
	if c.Editor == nil || c.Processor == nil {
		c.sendError("Editor session is not loaded")
		return
	}

	replies, err := c.Processor.ProcessMessage(c.Editor, &msg)
	if err != nil {
		c.Logger.Warn().
			Err(err).
			Str("type", string(msg.Type)).
			Uint("userId", msg.UserID).
			Msg("Failed to process message")

		c.sendError("Failed to process "+string(msg.Type), err)
		return
	}

	for _, reply := range replies {
		c.trySend(reply)
	}
}

func (c *Client) userInfo() UserInfo {
	return UserInfo{UserID: c.UserID, Username: c.Username, Color: c.Color}
}

// requiresProcessing checks if a message type has to reach the editor
func (c *Client) requiresProcessing(msgType MessageType) bool {
	return msgType != MessageTypePing
}

// generateUserColor generates a consistent color for a user based on their ID
func generateUserColor(userID uint) string {
	colors := []string{
		"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
		"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
		"#F8B739", "#52B788", "#E76F51", "#2A9D8F",
	}
	return colors[userID%uint(len(colors))]
}
