/*
Package chat contains the real-time core: the connection hub, room assignment,
message fan-out, and 1:1 video-chat matchmaking.

This file defines the Hub, the registry of live connections and their room
tags. Room membership is never persisted as a list; it is exactly the set of
connections currently tagged with the room key.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"geochat/internal/pkg/logx"
)

// Hub tracks live connections and their current room tag, and fans events out
// to rooms or single connections. Emission is fire-and-forget: a slow client
// drops frames rather than blocking a broadcast.
type Hub struct {
	// mu protects clients, rooms, and each client's room tag.
	mu sync.RWMutex

	// clients maps connection ID to the live client.
	clients map[string]*Client

	// rooms maps room key to the set of tagged connections.
	rooms map[string]map[string]*Client

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Register adds a freshly upgraded connection to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.connID] = c

	h.logger.Info().
		Str("connection_id", c.connID).
		Str("user_id", c.userID).
		Int("total_connections", len(h.clients)).
		Msg("Connection registered.")
}

// Unregister removes a connection from the registry and from its room tag,
// and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.connID]; !ok {
		return
	}

	h.untagLocked(c)
	delete(h.clients, c.connID)

	// Registry membership is the closed-flag: the early return above makes a
	// second Unregister a no-op, so the close runs exactly once.
	close(c.send)

	h.logger.Info().
		Str("connection_id", c.connID).
		Int("total_connections", len(h.clients)).
		Msg("Connection unregistered.")
}

// JoinRoom moves the connection's room tag to key.
func (h *Hub) JoinRoom(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.untagLocked(c)

	members, ok := h.rooms[key]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[key] = members
	}
	members[c.connID] = c
	c.room = key
}

// LeaveRoom clears the connection's room tag.
func (h *Hub) LeaveRoom(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.untagLocked(c)
}

func (h *Hub) untagLocked(c *Client) {
	if c.room == "" {
		return
	}
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c.connID)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// RoomSize returns the number of live connections tagged with key.
func (h *Hub) RoomSize(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[key])
}

// Room returns the connection's current room tag.
func (h *Hub) Room(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return c.room
}

// Broadcast sends an event to every connection tagged with the room key.
func (h *Hub) Broadcast(key string, t EventType, payload any) {
	frame, err := EncodeEvent(t, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(t)).Msg("Failed to encode broadcast event.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[key] {
		c.enqueueFrame(frame)
	}
}

// SendTo sends a directed event to a single connection. Returns false when
// the connection is no longer registered. The enqueue happens under the read
// lock: Unregister and Shutdown close the send channel under the write lock,
// so a send can never land on a closed channel.
func (h *Hub) SendTo(connID string, t EventType, payload any) bool {
	frame, err := EncodeEvent(t, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(t)).Msg("Failed to encode directed event.")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}

	c.enqueueFrame(frame)
	return true
}

// IsConnected reports whether the connection is still registered.
func (h *Hub) IsConnected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[connID]
	return ok
}

// Shutdown closes every registered connection's send channel, terminating
// their write pumps.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)

	h.logger.Info().Msg("Hub shutdown complete.")
}
