// Package hub fans JSON frames out to websocket subscribers grouped by
// topic. The server uses one topic per session id, so a client following
// a conversation only sees that session's events.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

type envelope struct {
	topic string
	frame []byte
}

// Hub maintains subscribers per topic and delivers published messages to them.
type Hub struct {
	name   string
	logger *slog.Logger

	// Owned by Run.
	topics map[string]map[*Client]struct{}

	publish    chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	counts map[string]int
	total  int
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub."+name),
		topics:     make(map[string]map[*Client]struct{}),
		publish:    make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		counts:     make(map[string]int),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// closing every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.topics {
				for c := range clients {
					close(c.send)
				}
			}
			h.topics = nil
			h.setCounts()
			return

		case c := <-h.register:
			clients, ok := h.topics[c.topic]
			if !ok {
				clients = make(map[*Client]struct{})
				h.topics[c.topic] = clients
			}
			clients[c] = struct{}{}
			h.setCounts()
			h.logger.Debug("subscriber connected", "topic", c.topic, "subscribers", len(clients))

		case c := <-h.unregister:
			h.drop(c)
			h.logger.Debug("subscriber disconnected", "topic", c.topic)

		case env := <-h.publish:
			for c := range h.topics[env.topic] {
				select {
				case c.send <- env.frame:
				default:
					// Slow subscriber; its buffer is full.
					h.drop(c)
					h.logger.Warn("dropped slow subscriber", "topic", env.topic)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	clients, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.topics, c.topic)
	}
	h.setCounts()
}

func (h *Hub) setCounts() {
	counts := make(map[string]int, len(h.topics))
	total := 0
	for topic, clients := range h.topics {
		counts[topic] = len(clients)
		total += len(clients)
	}
	h.mu.Lock()
	h.counts = counts
	h.total = total
	h.mu.Unlock()
}

// Publish queues a text frame for every subscriber of topic. It never
// blocks; when the queue is full the frame is dropped.
func (h *Hub) Publish(topic string, frame []byte) {
	select {
	case h.publish <- envelope{topic: topic, frame: frame}:
	default:
		h.logger.Warn("publish queue full, dropping message", "topic", topic)
	}
}

// PublishJSON encodes v and publishes it to topic.
func (h *Hub) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(topic, data)
	return nil
}

// ClientCount returns the number of subscribers of topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[topic]
}

// Total returns the number of subscribers across all topics.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
