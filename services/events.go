package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"spec-dating-system/models"
)

// Round event types carried over the realtime transport.
const (
	EventRoundStarted  = "round_started"
	EventRoundAnswered = "round_answered"
)

// Event is one realtime round event for a spec's subscribers. Delivery is
// at-most-once: a slow subscriber loses events rather than blocking the
// state transition that produced them.
type Event struct {
	Type   string         `json:"type"`
	SpecID string         `json:"spec_id"`
	Round  *models.Round  `json:"round,omitempty"`
	Answer *models.Answer `json:"answer,omitempty"`
}

// EventHub fans round events out to per-spec SSE subscribers.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers a buffered event channel for one spec.
func (h *EventHub) Subscribe(specID string) chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[specID] == nil {
		h.subs[specID] = map[chan Event]struct{}{}
	}
	h.subs[specID][ch] = struct{}{}
	return ch
}

func (h *EventHub) Unsubscribe(specID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[specID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, specID)
		}
	}
}

// Publish delivers the event to every subscriber of its spec without ever
// blocking. Full subscriber buffers drop the event.
func (h *EventHub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.SpecID] {
		select {
		case ch <- ev:
		default:
			log.Printf("[EVENTS] ⚠️ dropped %s event for spec %s (slow subscriber)", ev.Type, ev.SpecID)
		}
	}
}

// StreamSpecEvents streams round events for one spec as server-sent events.
func (h *EventHub) StreamSpecEvents(c *fiber.Ctx) error {
	specID := c.Params("id")
	if specID == "" {
		return fail(c, fmt.Errorf("%w: spec id required", ErrInvalidInput))
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ch := h.Subscribe(specID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.Unsubscribe(specID, ch)

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev := <-ch:
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Printf("[EVENTS] marshal error for spec %s: %v", specID, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})

	return nil
}
