package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Hub manages the viewer connections and routes layout events by pipeline id.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// pipelineID -> set of subscribed clients
	subscriptions map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscribeMsg
	broadcast  chan broadcastMsg
	stop       chan struct{}

	logger zerolog.Logger
}

type subscribeMsg struct {
	client     *Client
	pipelineID uint
}

type broadcastMsg struct {
	pipelineID uint
	payload    []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan subscribeMsg),
		broadcast:     make(chan broadcastMsg, 256),
		stop:          make(chan struct{}),
		logger:        logger,
	}
}

// PublishLayout wraps the event in the outgoing envelope and queues it for
// the subscribers of its pipeline. Events are dropped when the queue is full.
func (h *Hub) PublishLayout(ev LayoutEvent) {
	msgType := "position.changed"
	if ev.Reset {
		msgType = "positions.reset"
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal layout event")
		return
	}
	data, err := json.Marshal(outgoingMsg{Type: msgType, PipelineID: ev.PipelineID, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal envelope")
		return
	}

	select {
	case h.broadcast <- broadcastMsg{pipelineID: ev.PipelineID, payload: data}:
	default:
		h.logger.Warn().Uint("pipelineId", ev.PipelineID).Msg("Broadcast queue full, layout event dropped")
	}
}

// Stop ends Run
func (h *Hub) Stop() {
	close(h.stop)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.subscribe:
			if _, ok := h.clients[msg.client]; !ok {
				continue
			}
			if _, ok := h.subscriptions[msg.pipelineID]; !ok {
				h.subscriptions[msg.pipelineID] = make(map[*Client]bool)
			}
			h.subscriptions[msg.pipelineID][msg.client] = true
			h.logger.Debug().
				Uint("pipelineId", msg.pipelineID).
				Int("subscribers", len(h.subscriptions[msg.pipelineID])).
				Msg("Client subscribed")

		case msg := <-h.broadcast:
			for client := range h.subscriptions[msg.pipelineID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for pipelineID, subs := range h.subscriptions {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, pipelineID)
		}
	}
	h.logger.Debug().Int("clients", len(h.clients)).Msg("Client unregistered")
}
