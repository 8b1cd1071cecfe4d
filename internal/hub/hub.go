package hub

import (
	"encoding/json"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Client represents a single connection's outbound queue. The transport
// layer drains it and writes each frame to the wire.
type Client chan []byte

// Hub is the channel registry: it maps channel names to the set of clients
// currently subscribed. The realtime core only touches it through
// Subscribe, Unsubscribe, Disconnect and Broadcast.
type Hub struct {
	channels map[string]map[Client]bool
	mu       sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[Client]bool),
	}
}

// Subscribe adds a client to a named channel. Subscribing twice is a no-op:
// the client is present once and receives each broadcast once.
func (h *Hub) Subscribe(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[Client]bool)
	}
	h.channels[channel][client] = true
}

// Unsubscribe removes a client from a channel. The client's queue stays
// open; the connection remains usable for other channels.
func (h *Hub) Unsubscribe(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(channel, client)
}

// Disconnect removes a client from every channel it joined and closes its
// queue. Called by the transport when the connection goes away, so a closed
// connection can never linger in a channel's membership.
func (h *Hub) Disconnect(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel := range h.channels {
		h.removeLocked(channel, client)
	}
	close(client)
}

func (h *Hub) removeLocked(channel string, client Client) {
	clients, ok := h.channels[channel]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Broadcast sends an event to all clients on a channel. Broadcasting to a
// channel nobody joined is a no-op.
func (h *Hub) Broadcast(channel string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.channels[channel]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return
	}

	for client := range clients {
		// Non-blocking send so a slow client cannot stall the hub.
		select {
		case client <- messageBytes:
		default:
			// Queue full; the frame is dropped for this client. Disconnect
			// cleanup removes dead clients eventually.
		}
	}
}
