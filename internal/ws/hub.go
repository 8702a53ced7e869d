package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"chat-relay/internal/models"
)

// Hub maps channel names (usernames) to the live connections joined to them.
// A username may have several connections, one per device or tab.
type Hub struct {
	channels map[string]map[*Client]struct{}
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Join registers a connection under a channel.
func (h *Hub) Join(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
}

// Leave removes a connection from a channel and drops the channel when empty.
func (h *Hub) Leave(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// ChannelSize reports how many connections are joined to channel.
func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Emit queues event on every connection of channel and returns how many
// accepted it. Delivery is best effort: a connection whose queue is full is
// disconnected rather than waited on, and one already closing is skipped.
func (h *Hub) Emit(channel string, event models.Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("encode realtime event", "event", event.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.channels[channel]))
	for client := range h.channels[channel] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		switch err := client.enqueue(payload); {
		case err == nil:
			delivered++
		case errors.Is(err, errClientClosed):
			// Already disconnecting; its reader removes it from the hub.
			slog.Debug("skipping closed realtime connection", "channel", channel, "conn_id", client.info.ConnID)
		default:
			slog.Warn("dropping slow realtime connection", "channel", channel, "conn_id", client.info.ConnID)
			h.Leave(channel, client)
			client.close()
		}
	}
	return delivered
}

// CloseAll disconnects every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	channels := h.channels
	h.channels = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, clients := range channels {
		for client := range clients {
			client.close()
		}
	}
}
