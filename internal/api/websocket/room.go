package websocket

import (
	"dashboard/internal/realtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Room holds the editors open on one pipeline
type Room struct {
	PipelineID uint
	Clients    map[string]*Client
	mu         sync.RWMutex
	Logger     zerolog.Logger
}

func NewRoom(pipelineID uint, logger zerolog.Logger) *Room {
	return &Room{
		PipelineID: pipelineID,
		Clients:    make(map[string]*Client),
		Logger:     logger,
	}
}

// AddClient adds a client to the room
func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Clients[client.ID] = client
	r.Logger.Info().
		Uint("pipelineId", r.PipelineID).
		Str("clientId", client.ID).
		Uint("userId", client.UserID).
		Int("totalClients", len(r.Clients)).
		Msg("Client joined room")

	r.broadcastUserJoin(client)
}

// RemoveClient removes a client from the room
func (r *Room) RemoveClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.Clients[client.ID]; exists {
		delete(r.Clients, client.ID)
		r.Logger.Info().
			Uint("pipelineId", r.PipelineID).
			Str("clientId", client.ID).
			Uint("userId", client.UserID).
			Int("remainingClients", len(r.Clients)).
			Msg("Client left room")

		r.broadcastUserLeave(client)
	}
}

// Broadcast sends a message to all clients in the room
func (r *Room) Broadcast(message Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.sendAll(message)
}

// sendAll drops the message for clients whose buffer is full. The caller holds the lock.
func (r *Room) sendAll(message Message) {
	for _, client := range r.Clients {
		select {
		case client.Send <- message:
		default:
			r.Logger.Warn().
				Str("clientId", client.ID).
				Str("type", string(message.Type)).
				Msg("Client send buffer full, message dropped")
		}
	}
}

// DeliverLayout hands a layout event to the process worker of every client,
// which applies it to its own editor
func (r *Room) DeliverLayout(ev realtime.LayoutEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, client := range r.Clients {
		select {
		case client.Remote <- ev:
		default:
			r.Logger.Warn().
				Str("clientId", client.ID).
				Uint("nodeId", ev.NodeID).
				Msg("Client layout buffer full, event dropped")
		}
	}
}

// GetActiveUsers returns a list of active users in the room
func (r *Room) GetActiveUsers() []UserInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeUsers()
}

func (r *Room) activeUsers() []UserInfo {
	users := make([]UserInfo, 0, len(r.Clients))
	seen := make(map[uint]bool)

	for _, client := range r.Clients {
		if !seen[client.UserID] {
			users = append(users, client.userInfo())
			seen[client.UserID] = true
		}
	}
	return users
}

// IsEmpty returns true if the room has no clients
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients) == 0
}

// ClientCount returns the number of clients in the room
func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients)
}

// broadcastUserJoin tells the room about the newcomer and gives the newcomer
// the list of users already there. The caller holds the lock.
func (r *Room) broadcastUserJoin(client *Client) {
	r.sendAll(NewUserJoinMessage(r.PipelineID, client.UserID, client.Username, client.userInfo()))

	select {
	case client.Send <- Message{
		Type:       MessageTypeUserJoin,
		PipelineID: r.PipelineID,
		Username:   "system",
		Timestamp:  time.Now(),
		Data:       map[string]any{"activeUsers": r.activeUsers()},
	}:
	default:
	}
}

// broadcastUserLeave runs after the client left the room. The caller holds the lock.
func (r *Room) broadcastUserLeave(client *Client) {
	r.sendAll(NewUserLeaveMessage(r.PipelineID, client.UserID, client.Username, client.userInfo()))
}
