package realtime

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

type subscriber struct {
	ch chan Message
}

// Hub keeps in-memory subscribers grouped by recipient. It is process-local.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for recipientID and returns its channel plus
// an unsubscribe function that must be called on disconnect.
func (h *Hub) Subscribe(recipientID string) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, subscriberBuffer)}

	h.mu.Lock()
	set, ok := h.subscribers[recipientID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[recipientID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subscribers, recipientID)
			}
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, unsubscribe
}

// Publish sends msg to every subscriber of its recipient. Slow consumers miss
// the message rather than block the producer.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[msg.RecipientID] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// SubscriberCount reports live subscribers for recipientID.
func (h *Hub) SubscriberCount(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[recipientID])
}
