// Package push fans payment status events out to rooms keyed by user and
// payment. Webhook handlers publish, checkout sessions subscribe.
package push

import (
	"log/slog"
	"sync"

	"checkout-orchestrator/internal/model"
)

const roomBuffer = 4

type Event struct {
	UserID    string              `json:"user_id"`
	PaymentID string              `json:"payment_id"`
	OrderID   string              `json:"order_id"`
	Status    model.PaymentStatus `json:"status"`
}

type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*Subscription]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription is a membership in one room. Events is closed on Leave.
type Subscription struct {
	hub  *Hub
	room string
	ch   chan Event
	left bool
}

func roomKey(userID, paymentID string) string {
	return userID + "/" + paymentID
}

func (h *Hub) Join(userID, paymentID string) *Subscription {
	key := roomKey(userID, paymentID)
	sub := &Subscription{
		hub:  h,
		room: key,
		ch:   make(chan Event, roomBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[key]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[key] = members
	}
	members[sub] = struct{}{}

	h.logger.Debug("joined payment room", "room", key)
	return sub
}

// Publish delivers ev to every member of its room and returns how many
// members received it. Slow members drop the event rather than block.
func (h *Hub) Publish(ev Event) int {
	key := roomKey(ev.UserID, ev.PaymentID)

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.rooms[key] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.logger.Warn("payment room member is full, dropping event", "room", key, "status", ev.Status)
		}
	}
	return delivered
}

// Members returns the number of subscriptions in the room.
func (h *Hub) Members(userID, paymentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomKey(userID, paymentID)])
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Leave removes the subscription from its room. Safe to call more than once.
func (s *Subscription) Leave() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.left {
		return
	}
	s.left = true

	if members, ok := h.rooms[s.room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, s.room)
		}
	}
	close(s.ch)
}
