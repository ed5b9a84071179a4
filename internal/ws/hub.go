// Package ws is the realtime side of the backend: the hub routes events to
// rooms of live connections and the session handler drives one connection's
// lifecycle.
package ws

import "sync"

// Hub owns room membership for this process. Rooms are keyed by
// conversation id and hold connection ids, so membership dies with the
// connection. All maps are guarded by one RWMutex; broadcasts hold the
// read lock only long enough to queue onto per-client channels.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client             // connID -> client
	rooms   map[string]map[string]struct{} // conversationID -> set of connID
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
}

// Remove drops the client and all of its room memberships.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	for convID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, convID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Join(conversationID, connID string) {
	h.mu.Lock()
	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[conversationID] = members
	}
	members[connID] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Leave(conversationID, connID string) {
	h.mu.Lock()
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()
}

// Broadcast queues the event to every connection in the room. Delivery is
// best-effort: a client with a full buffer is skipped.
func (h *Hub) Broadcast(conversationID string, event []byte) {
	h.BroadcastExcept(conversationID, event, "")
}

// BroadcastExcept is Broadcast minus one connection, used for transient
// signals that must not echo to their sender.
func (h *Hub) BroadcastExcept(conversationID string, event []byte, exceptConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	for connID := range members {
		if connID == exceptConnID {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			c.Queue(event)
		}
	}
}

// BroadcastAll queues the event to every live connection, regardless of
// rooms. Used for the global online snapshot.
func (h *Hub) BroadcastAll(event []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Queue(event)
	}
}

// SendTo queues the event to one connection; reports whether the
// connection exists and accepted it.
func (h *Hub) SendTo(connID string, event []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Queue(event)
}
