package realtime

import (
	"context"
	"sort"
	"sync"
)

// Feed is the consuming side of a recipient's stream: it merges pushed
// notifications into a recency-ordered list and keeps the unread badge.
// Messages that arrive after Close are ignored.
type Feed struct {
	mu      sync.Mutex
	items   []NotificationSnapshot
	counted map[string]struct{}
	tickets map[string]*TicketSnapshot
	unread  int
	closed  bool
}

// NewFeed seeds a feed with an initial page and unread count.
func NewFeed(initial []NotificationSnapshot, unread int) *Feed {
	f := &Feed{
		counted: make(map[string]struct{}),
		tickets: make(map[string]*TicketSnapshot),
		unread:  unread,
	}
	for _, n := range initial {
		f.items = append(f.items, n)
		if !n.IsRead {
			f.counted[n.ID] = struct{}{}
		}
	}
	f.sort()
	return f
}

// Run applies messages from ch until ctx ends, ch closes or the feed is closed.
func (f *Feed) Run(ctx context.Context, ch <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			f.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !f.Apply(msg) && f.Closed() {
				return
			}
		}
	}
}

// Apply merges one message and reports whether it changed the feed.
func (f *Feed) Apply(msg Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	switch msg.Kind {
	case KindNotification:
		if msg.Notification == nil {
			return false
		}
		return f.mergeNotification(*msg.Notification)
	case KindUnreadCount:
		if msg.UnreadCount == nil {
			return false
		}
		f.unread = *msg.UnreadCount
		return true
	case KindTicket:
		if msg.Ticket == nil {
			return false
		}
		merged := ReconcileTicket(f.tickets[msg.Ticket.ID], msg.Ticket)
		f.tickets[msg.Ticket.ID] = merged
		return merged == msg.Ticket
	}
	return false
}

func (f *Feed) mergeNotification(n NotificationSnapshot) bool {
	replaced := false
	for i := range f.items {
		if f.items[i].ID == n.ID {
			f.items[i] = n
			replaced = true
			break
		}
	}
	if !replaced {
		f.items = append(f.items, n)
		f.sort()
	}
	if !n.IsRead {
		if _, seen := f.counted[n.ID]; !seen {
			f.counted[n.ID] = struct{}{}
			f.unread++
		}
	}
	return true
}

func (f *Feed) sort() {
	sort.SliceStable(f.items, func(i, j int) bool {
		if !f.items[i].CreatedAt.Equal(f.items[j].CreatedAt) {
			return f.items[i].CreatedAt.After(f.items[j].CreatedAt)
		}
		return f.items[i].ID > f.items[j].ID
	})
}

// Close stops the feed; later messages are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Closed reports whether Close was called.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Notifications returns a copy of the merged list, newest first.
func (f *Feed) Notifications() []NotificationSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NotificationSnapshot(nil), f.items...)
}

// Unread returns the badge count.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Ticket returns the latest known copy of a ticket.
func (f *Feed) Ticket(id string) (*TicketSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	return t, ok
}
