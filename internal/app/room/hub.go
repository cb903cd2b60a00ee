/*
Package room contains the realtime session layer: WebSocket clients, the broadcast hub and
the coordinator that turns client commands into game state changes.

This file defines the Hub, which subscribes connections to per-game topics and fans
events out to the sender, to everyone but the sender, or to the whole room.
*/
package room

import (
	"sync"

	"github.com/rs/zerolog"

	"planpoker/internal/app/eventbus"
	"planpoker/internal/pkg/logx"
)

// Hub is the broadcast router.
type Hub struct {
	mu sync.RWMutex

	// topics maps a game ID to the connections subscribed to it.
	topics map[string]map[*Client]struct{}

	// joined maps each subscribed connection to its single topic.
	joined map[*Client]string

	// mirror receives a copy of every room-wide event.
	mirror eventbus.Publisher

	logger zerolog.Logger
}

// NewHub creates a Hub. A nil mirror disables mirroring.
func NewHub(mirror eventbus.Publisher) *Hub {
	if mirror == nil {
		mirror = eventbus.Noop{}
	}

	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]string),
		mirror: mirror,
		logger: logx.Component("hub"),
	}
}

// Subscribe moves c onto the topic of gameID, leaving any previous topic.
func (h *Hub) Subscribe(gameID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.joined[c]; ok {
		if current == gameID {
			return
		}
		h.unsubscribeLocked(c, current)
	}

	members, ok := h.topics[gameID]
	if !ok {
		members = make(map[*Client]struct{})
		h.topics[gameID] = members
	}
	members[c] = struct{}{}
	h.joined[c] = gameID
}

// Unsubscribe removes c from its topic, if any.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.joined[c]; ok {
		h.unsubscribeLocked(c, current)
	}
}

func (h *Hub) unsubscribeLocked(c *Client, gameID string) {
	delete(h.joined, c)

	members := h.topics[gameID]
	delete(members, c)
	if len(members) == 0 {
		delete(h.topics, gameID)
	}
}

// RoomSize returns how many connections are subscribed to gameID.
func (h *Hub) RoomSize(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics[gameID])
}

// ToSender delivers msg to c only.
func (h *Hub) ToSender(c *Client, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("msg_type", string(msg.Type)).Msg("Failed to encode message.")
		return
	}

	h.deliver(c, data)
}

// ToOthers delivers msg to every connection on gameID except sender.
func (h *Hub) ToOthers(gameID string, sender *Client, msg Message) {
	h.broadcast(gameID, sender, msg)
}

// ToRoom delivers msg to every connection on gameID.
func (h *Hub) ToRoom(gameID string, msg Message) {
	h.broadcast(gameID, nil, msg)
}

func (h *Hub) broadcast(gameID string, except *Client, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("msg_type", string(msg.Type)).Msg("Failed to encode message.")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[gameID]))
	for c := range h.topics[gameID] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, data)
	}

	if err := h.mirror.Publish(gameID, string(msg.Type), data); err != nil {
		h.logger.Warn().Err(err).Str("game_id", gameID).Msg("Failed to mirror event.")
	}
}

// deliver queues data for c, closing connections that cannot keep up.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.enqueue(data) {
		return
	}

	select {
	case <-c.Done():
	default:
		h.logger.Warn().
			Str("client_id", c.ID).
			Int("queue_len", len(c.send)).
			Msg("Client send buffer full, closing connection.")
		c.Close()
	}
}

// Shutdown closes every subscribed connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.joined))
	for c := range h.joined {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	h.logger.Info().Int("connections", len(clients)).Msg("Hub shutdown complete.")
}
