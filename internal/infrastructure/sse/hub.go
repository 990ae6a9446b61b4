package sse

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// Event is one accepted state transition published to the activity stream.
type Event struct {
	ID        string              `json:"id"`
	UserID    uuid.UUID           `json:"userId"`
	GameKey   int64               `json:"gameKey"`
	Previous  *tracking.StateKind `json:"previous,omitempty"`
	New       tracking.StateKind  `json:"new"`
	ChangedAt time.Time           `json:"changedAt"`
}

// NewEvent builds an activity event from an accepted write.
func NewEvent(applied *tracking.Applied) *Event {
	return &Event{
		ID:        uuid.New().String(),
		UserID:    applied.UserID,
		GameKey:   applied.GameKey,
		Previous:  applied.Previous,
		New:       applied.New,
		ChangedAt: applied.ChangedAt,
	}
}

// Client is one active activity-stream subscription. A nil UserID subscribes
// to all activity; otherwise only that user's transitions are delivered.
type Client struct {
	ClientID    string
	UserID      *uuid.UUID
	ConnectedAt time.Time
	Events      chan *Event
}

func NewClient(userID *uuid.UUID) *Client {
	return &Client{
		ClientID:    uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan *Event, 100),
	}
}

func (c *Client) Close() {
	close(c.Events)
}

// Hub fans accepted state transitions out to activity-stream clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers the event to every matching client. Slow clients are
// skipped rather than blocking the write path.
func (h *Hub) Publish(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID != nil && *c.UserID != event.UserID {
			continue
		}
		select {
		case c.Events <- event:
		default:
		}
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
