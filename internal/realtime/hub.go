// Package realtime pushes calendar changes to connected clients over
// WebSocket so open calendars resync without polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Freeeeeet/advising_portal/internal/notify"
	"go.uber.org/zap"
)

// Frame is what clients receive.
type Frame struct {
	Type      notify.Kind `json:"type"`
	EventID   string      `json:"event_id"`
	AdvisorID int64       `json:"advisor_id"`
	Date      string      `json:"date"`
	Start     string      `json:"start"`
	IsOpen    bool        `json:"is_open"`
	Booked    bool        `json:"booked"`
}

func frameOf(e notify.Event) (Frame, bool) {
	f := Frame{Type: e.Kind, EventID: e.ID}
	switch {
	case e.Slot != nil:
		f.AdvisorID, f.Date, f.Start, f.IsOpen = e.Slot.AdvisorID, e.Slot.Date, e.Slot.Start, e.Slot.IsOpen
	case e.Reservation != nil:
		f.AdvisorID, f.Date, f.Start, f.Booked = e.Reservation.Advisor.UserID, e.Reservation.Date, e.Reservation.Start, true
	default:
		return Frame{}, false
	}
	return f, true
}

type subscriber struct {
	advisorID int64 // zero: all advisors
	send      chan []byte
}

// Hub fans frames out to subscribers. Slow subscribers lose frames rather
// than block delivery.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[uint64]*subscriber)}
}

// Subscribe registers a subscriber and returns its frame channel and an
// unsubscribe func.
func (h *Hub) Subscribe(advisorID int64, buffer int) (<-chan []byte, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s := &subscriber{advisorID: advisorID, send: make(chan []byte, buffer)}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = s
	h.mu.Unlock()

	var once sync.Once
	return s.send, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Name() string { return "realtime" }

// Notify implements notify.Notifier.
func (h *Hub) Notify(_ context.Context, e notify.Event) error {
	frame, ok := frameOf(e)
	if !ok {
		return nil
	}
	body, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if s.advisorID != 0 && s.advisorID != frame.AdvisorID {
			continue
		}
		select {
		case s.send <- body:
		default:
			h.logger.Debug("Realtime subscriber too slow, frame dropped", zap.String("event_id", e.ID))
		}
	}
	return nil
}
