package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client is a read-only viewer connection following one or more pipelines.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
	logger zerolog.Logger
}

// incomingMsg is a command from the viewer
type incomingMsg struct {
	Action     string `json:"action"` // "subscribe"
	PipelineID uint   `json:"pipelineId"`
}

// outgoingMsg is the envelope sent to the viewer
type outgoingMsg struct {
	Type       string          `json:"type"`
	PipelineID uint            `json:"pipelineId"`
	Payload    json.RawMessage `json:"payload"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		userID: userID,
		logger: hub.logger.With().Uint("userId", userID).Logger(),
	}
}

// ReadPump reads subscribe commands from the connection.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Viewer read error")
			}
			break
		}

		var msg incomingMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring malformed viewer message")
			continue
		}

		switch msg.Action {
		case "subscribe":
			if msg.PipelineID == 0 {
				continue
			}
			select {
			case c.hub.subscribe <- subscribeMsg{client: c, pipelineID: msg.PipelineID}:
			case <-c.hub.stop:
				return
			}
		default:
			c.logger.Debug().Str("action", msg.Action).Msg("Unknown viewer action")
		}
	}
}

// WritePump writes queued events to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
