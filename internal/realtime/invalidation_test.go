package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/cache"
)

// loopback stands in for the shared Redis channel: every envelope published by
// from is delivered to each peer bridge.
type loopback struct {
	from  *RedisBridge
	peers []*RedisBridge
}

func (l loopback) Publish(ctx context.Context, msg Message) error {
	body, err := l.from.envelope(msg)
	if err != nil {
		return err
	}
	for _, peer := range l.peers {
		peer.deliver(ctx, string(body))
	}
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Message) error {
	return errors.New("redis down")
}

func newTicketCache(t *testing.T) *cache.Store[string] {
	t.Helper()
	store, err := cache.New[string](cache.Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("cache init failed: %v", err)
	}
	t.Cleanup(store.Close)
	store.Set("tickets-p1-active", "p1")
	store.Set("tickets-p2-active", "p2")
	return store
}

func TestInvalidationReachesOtherInstances(t *testing.T) {
	cacheA, cacheB := newTicketCache(t), newTicketCache(t)
	bridgeA := NewRedisBridge(nil, "", NewHub(), nil)
	bridgeB := NewRedisBridge(nil, "", NewHub(), nil)
	bridgeA.HandleInvalidations(cacheA)
	bridgeB.HandleInvalidations(cacheB)

	invalidator := NewBroadcastInvalidator(cacheA, loopback{from: bridgeA, peers: []*RedisBridge{bridgeA, bridgeB}}, nil)
	if evicted := invalidator.InvalidatePrefix("tickets-p1-"); evicted != 1 {
		t.Fatalf("expected 1 local eviction, got %d", evicted)
	}

	for name, store := range map[string]*cache.Store[string]{"A": cacheA, "B": cacheB} {
		if _, ok := store.Peek("tickets-p1-active"); ok {
			t.Fatalf("expected instance %s to drop the p1 snapshot", name)
		}
		if _, ok := store.Peek("tickets-p2-active"); !ok {
			t.Fatalf("expected instance %s to keep the p2 snapshot", name)
		}
	}
}

func TestInvalidationEvictsLocallyWhenBroadcastFails(t *testing.T) {
	local := newTicketCache(t)
	invalidator := NewBroadcastInvalidator(local, failingPublisher{}, nil)
	if evicted := invalidator.InvalidatePrefix("tickets-p2-"); evicted != 1 {
		t.Fatalf("expected local eviction despite publish failure, got %d", evicted)
	}
}

func TestInvalidationIsNotDeliveredToSubscribers(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("alice")
	defer unsubscribe()
	sender := NewRedisBridge(nil, "", NewHub(), nil)
	receiver := NewRedisBridge(nil, "", hub, nil)

	body, err := sender.envelope(Message{Kind: KindCacheInvalidate, CachePrefix: "tickets-p1-"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	receiver.deliver(context.Background(), string(body))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery: %+v", msg)
	default:
	}

	if _, err := decodeEnvelope(`{"kind":"cache.invalidate"}`); err == nil {
		t.Fatalf("expected error for invalidation without prefix")
	}
}
