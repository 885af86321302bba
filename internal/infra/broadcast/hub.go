// Package broadcast is the process-wide pub/sub fabric connecting job
// workers and agent turns to websocket gateways. Topics are plain strings
// ("task_<jobID>", "chat_<sessionID>"); there is no replay buffer and
// delivery is at-most-once per subscriber.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"vidboost/internal/infra/metrics"
)

// Event is one typed message published to exactly one topic. Message
// carries human-readable status text; streamed chat text travels in
// Content, which is what chat clients read chunks from.
type Event struct {
	Type      string `json:"type"`
	TaskID    string `json:"task_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Subscriber is one connection's handle on a topic. Events are received
// from Events(); the channel is closed by Unsubscribe or hub Close.
type Subscriber struct {
	ch chan Event
}

func (s *Subscriber) Events() <-chan Event { return s.ch }

// Hub fans events out to every subscriber of a topic. Membership changes
// are safe to call concurrently from many connections and many workers.
// Within one topic, delivery order equals publish order from a single
// publisher; there is no cross-topic ordering.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	closed bool
	log    *zerolog.Logger
}

func NewHub(log *zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscriber]struct{}),
		log:    log,
	}
}

// Subscribe adds a new handle to topic and returns it. A handle belongs to
// at most one topic for its lifetime.
func (h *Hub) Subscribe(topic string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 32
	}
	sub := &Subscriber{ch: make(chan Event, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.topics[topic] = set
	}
	set[sub] = struct{}{}
	h.log.Debug().Str("topic", topic).Int("subscribers", len(set)).Msg("fabric subscribe")
	return sub
}

// Unsubscribe removes the handle and closes its channel. Safe to call on
// every exit path; extra calls are no-ops.
func (h *Hub) Unsubscribe(topic string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, member := set[sub]; !member {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
	close(sub.ch)
	h.log.Debug().Str("topic", topic).Msg("fabric unsubscribe")
}

// Publish delivers ev to every current subscriber of topic. Publishing to
// a topic with zero subscribers is a cheap no-op. A subscriber whose
// buffer is full has this event dropped; neither the publisher nor the
// other subscribers block on it.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- ev:
		default:
			metrics.IncDroppedEvent()
			h.log.Warn().Str("topic", topic).Str("type", ev.Type).Msg("subscriber buffer full, event dropped")
		}
	}
}

// Close drains the hub on shutdown: all subscriber channels are closed and
// further publishes become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, set := range h.topics {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.topics, topic)
	}
}
