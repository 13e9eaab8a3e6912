package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notice is one message routed to matching clients
type notice struct {
	owner *uuid.UUID // nil broadcasts to every client
	data  []byte
}

// Hub fans job events out to connected dashboard clients. Operators only
// see their own jobs, admins see everything.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	notices    chan notice
	clients    map[*Client]bool
	logger     *zap.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubLogger sets the logger
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates a hub; call Run to start routing
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notices:    make(chan notice, 256),
		clients:    make(map[*Client]bool),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run routes messages until the context is cancelled. It owns the client
// set; all map access happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("dashboard client connected",
				zap.String("user_id", client.userID.String()),
				zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("dashboard client disconnected",
					zap.String("user_id", client.userID.String()),
					zap.Int("clients", len(h.clients)))
			}

		case n := <-h.notices:
			for client := range h.clients {
				if !client.wants(n.owner) {
					continue
				}
				select {
				case client.send <- n.data:
				default:
					// Slow client, drop it rather than block the hub
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("dropped slow dashboard client",
						zap.String("user_id", client.userID.String()))
				}
			}
		}
	}
}

// Publish queues an envelope for clients entitled to the job. A nil owner
// reaches every client. Messages are dropped when the hub queue is full.
func (h *Hub) Publish(env Envelope, owner *uuid.UUID) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode ws envelope", zap.Error(err))
		return
	}
	select {
	case h.notices <- notice{owner: owner, data: data}:
	default:
		h.logger.Warn("ws hub queue full, message dropped",
			zap.String("type", env.Type),
			zap.String("job_id", env.JobID.String()))
	}
}

// wants reports whether the client should receive a message for the owner
func (c *Client) wants(owner *uuid.UUID) bool {
	if c.admin || owner == nil {
		return true
	}
	return c.userID == *owner
}
