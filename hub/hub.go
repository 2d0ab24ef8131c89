// Package hub pushes events to connected websocket clients, addressed by
// user id. Delivery is best effort: a user with no open connection, or a
// connection that is not keeping up, simply misses the push and catches up
// through the REST endpoints.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/agrimarket/utils"
)

// Event names sent to clients.
const (
	EventNotification  = "notification"
	EventChatMessage   = "chat_message"
	EventBidUpdate     = "bid_update"
	EventBookingUpdate = "booking_update"
	EventProductListed = "product_listed"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds every open client connection grouped by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
}

func New() *Hub {
	return &Hub{clients: make(map[uint]map[*Client]struct{})}
}

// Register adds c. A user may hold several connections at once.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.UserID, "role": c.Role, "client": c.ID}).Info("websocket client registered")
}

// Unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
	utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.UserID, "client": c.ID}).Info("websocket client unregistered")
}

// Dispatch queues an event for every connection of userID. It never blocks.
func (h *Hub) Dispatch(userID uint, event string, data interface{}) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[userID]
	if len(set) == 0 {
		utils.InfoLogger.WithFields(logrus.Fields{"user_id": userID, "event": event}).Debug("recipient offline, push skipped")
		return
	}
	for c := range set {
		select {
		case c.send <- payload:
		default:
			utils.InfoLogger.WithFields(logrus.Fields{"user_id": userID, "event": event, "client": c.ID}).Warn("client send queue full, push dropped")
		}
	}
}

// Broadcast queues an event for every connected client with the given role,
// or for everyone when role is empty.
func (h *Hub) Broadcast(role, event string, data interface{}) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			if role != "" && c.Role != role {
				continue
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

// Online reports, for each id, whether it has at least one open connection.
func (h *Hub) Online(ids []uint) map[uint]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = len(h.clients[id]) > 0
	}
	return out
}

// ConnectedUsers returns the number of distinct users online.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
