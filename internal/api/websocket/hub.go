package websocket

import (
	"dashboard/internal/realtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub maintains the editor rooms and routes messages and layout events to them
type Hub struct {
	// Rooms indexed by pipeline ID
	Rooms map[uint]*Room

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to every client of a room
	Broadcast chan Message

	layout chan realtime.LayoutEvent
	stop   chan struct{}

	mu     sync.RWMutex
	Logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		Rooms:      make(map[uint]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message, 256),
		layout:     make(chan realtime.LayoutEvent, 256),
		stop:       make(chan struct{}),
		Logger:     logger,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	cleanupTicker := time.NewTicker(5 * time.Minute)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Broadcast:
			h.broadcastMessage(message)

		case ev := <-h.layout:
			h.deliverLayout(ev)

		case <-cleanupTicker.C:
			h.cleanupEmptyRooms()

		case <-h.stop:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
}

// Join registers the client with the running hub. Once the hub is stopped it
// shuts the client down instead and returns false.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.stop:
		close(client.ProcessQueue)
		if client.Conn != nil {
			client.Conn.Close()
		}
		return false
	}
}

// PublishLayout queues a saved position for the editors of its pipeline. It
// never blocks, so it is safe from NATS callbacks and store writers.
func (h *Hub) PublishLayout(ev realtime.LayoutEvent) {
	select {
	case h.layout <- ev:
	default:
		h.Logger.Warn().
			Uint("pipelineId", ev.PipelineID).
			Uint("nodeId", ev.NodeID).
			Msg("Layout queue full, event dropped")
	}
}

// Notify sends a notice to every editor of the pipeline without blocking
func (h *Hub) Notify(pipelineID uint, text string) {
	select {
	case h.Broadcast <- NewNoticeMessage(pipelineID, text):
	default:
		h.Logger.Warn().Uint("pipelineId", pipelineID).Msg("Broadcast queue full, notice dropped")
	}
}

// registerClient registers a new client to a room
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.Rooms[client.PipelineID]
	if !exists {
		room = NewRoom(client.PipelineID, h.Logger)
		h.Rooms[client.PipelineID] = room
		h.Logger.Info().Uint("pipelineId", client.PipelineID).Msg("Created new room")
	}

	room.AddClient(client)
}

// unregisterClient removes a client from its room. The client closes its own
// send channel once its process worker stops.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.Rooms[client.PipelineID]
	if !exists {
		return
	}

	room.RemoveClient(client)

	if room.IsEmpty() {
		delete(h.Rooms, client.PipelineID)
		h.Logger.Info().Uint("pipelineId", client.PipelineID).Msg("Removed empty room")
	}
}

func (h *Hub) broadcastMessage(message Message) {
	h.mu.RLock()
	room, exists := h.Rooms[message.PipelineID]
	h.mu.RUnlock()

	if !exists {
		h.Logger.Debug().
			Uint("pipelineId", message.PipelineID).
			Str("type", string(message.Type)).
			Msg("Room not found for broadcast")
		return
	}

	room.Broadcast(message)

	h.Logger.Debug().
		Str("type", string(message.Type)).
		Uint("pipelineId", message.PipelineID).
		Msg("Broadcasted message")
}

func (h *Hub) deliverLayout(ev realtime.LayoutEvent) {
	h.mu.RLock()
	room, exists := h.Rooms[ev.PipelineID]
	h.mu.RUnlock()

	if !exists {
		return
	}
	room.DeliverLayout(ev)
}

// cleanupEmptyRooms removes empty rooms
func (h *Hub) cleanupEmptyRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()

	emptyRooms := make([]uint, 0)
	for pipelineID, room := range h.Rooms {
		if room.IsEmpty() {
			emptyRooms = append(emptyRooms, pipelineID)
		}
	}

	for _, pipelineID := range emptyRooms {
		delete(h.Rooms, pipelineID)
		h.Logger.Info().Uint("pipelineId", pipelineID).Msg("Cleaned up empty room")
	}

	if len(emptyRooms) > 0 {
		h.Logger.Info().
			Int("cleanedRooms", len(emptyRooms)).
			Int("activeRooms", len(h.Rooms)).
			Msg("Room cleanup completed")
	}
}

// GetRoomStats returns the number of clients per pipeline
func (h *Hub) GetRoomStats() map[uint]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make(map[uint]int)
	for pipelineID, room := range h.Rooms {
		stats[pipelineID] = room.ClientCount()
	}
	return stats
}

// GetActiveUsersInRoom returns active users editing a pipeline
func (h *Hub) GetActiveUsersInRoom(pipelineID uint) []UserInfo {
	h.mu.RLock()
	room, exists := h.Rooms[pipelineID]
	h.mu.RUnlock()

	if !exists {
		return []UserInfo{}
	}

	return room.GetActiveUsers()
}
