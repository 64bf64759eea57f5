package gateway

import (
	"sync"

	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

// Hub tracks live connections and the broadcast group each one is subscribed
// to. Groups are keyed by room code so events reach exactly a room's
// participants. The hub also remembers which room a connection is in, which
// lets an abrupt disconnect run the same removal path as an explicit leave.
type Hub struct {
	mu         sync.RWMutex
	clients    map[stringid.ID]*Client
	groups     map[string]map[stringid.ID]*Client
	clientRoom map[stringid.ID]string
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[stringid.ID]*Client),
		groups:     make(map[string]map[stringid.ID]*Client),
		clientRoom: make(map[stringid.ID]string),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister drops the connection and returns the room code it was
// subscribed to, if any.
func (h *Hub) Unregister(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	code := h.clientRoom[c.ID]
	h.removeFromGroup(c.ID, code)
	delete(h.clients, c.ID)
	close(c.send)
	return code
}

// Subscribe moves a connection into a room's broadcast group. A connection
// belongs to at most one group at a time.
func (h *Hub) Subscribe(c *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev := h.clientRoom[c.ID]; prev != "" && prev != code {
		h.removeFromGroup(c.ID, prev)
	}
	g, ok := h.groups[code]
	if !ok {
		g = make(map[stringid.ID]*Client)
		h.groups[code] = g
	}
	g[c.ID] = c
	h.clientRoom[c.ID] = code
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromGroup(c.ID, h.clientRoom[c.ID])
}

// RoomOf returns the room code the connection is subscribed to, or "".
func (h *Hub) RoomOf(id stringid.ID) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientRoom[id]
}

// Broadcast queues msg on every connection in the room's group. A connection
// whose send buffer is full is skipped rather than allowed to stall the rest
// of the room.
func (h *Hub) Broadcast(code string, msg []byte) {
	h.broadcast(code, "", msg)
}

// BroadcastExcept is Broadcast minus one connection, used for events the
// originator receives in a different form (e.g. room-joined vs player-joined).
func (h *Hub) BroadcastExcept(code string, except stringid.ID, msg []byte) {
	h.broadcast(code, except, msg)
}

func (h *Hub) broadcast(code string, except stringid.ID, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.groups[code] {
		if id == except {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

// caller must hold h.mu
func (h *Hub) removeFromGroup(id stringid.ID, code string) {
	if code == "" {
		return
	}
	if g, ok := h.groups[code]; ok {
		delete(g, id)
		if len(g) == 0 {
			delete(h.groups, code)
		}
	}
	delete(h.clientRoom, id)
}
