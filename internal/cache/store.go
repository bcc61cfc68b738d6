// Package cache is a stale-while-revalidate read cache with optimistic local
// writes. Entries carry their origin and timestamp; a confirmed remote payload
// replaces a local one when it is at least as new.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Origin records who produced an entry.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Entry is a cached payload.
type Entry[T any] struct {
	Payload   T
	Timestamp time.Time
	Origin    Origin
}

// Fetcher loads the authoritative payload for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options configure a Store.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
	Logger     *zap.Logger
}

// ErrClosed is returned by blocking fetches after Close.
var ErrClosed = errors.New("cache: closed")

// Store is safe for concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Entry[T]]
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	// gen advances on every invalidation; fetches started under an older gen are not stored.
	gen      uint64
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New builds a store.
func New[T any](opts Options) (*Store[T], error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	entries, err := lru.New[string, Entry[T]](opts.MaxEntries)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store[T]{
		entries: entries,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Get returns the cached payload immediately when present, reporting whether it
// is stale; a stale read schedules one background revalidation. A missing key
// blocks on fetch.
func (s *Store[T]) Get(ctx context.Context, key string, fetch Fetcher[T]) (T, bool, error) {
	if entry, ok := s.entries.Get(key); ok {
		stale := s.now().Sub(entry.Timestamp) >= s.ttl
		if stale {
			s.revalidate(key, fetch)
		}
		return entry.Payload, stale, nil
	}

	gen, started, ok := s.begin()
	if !ok {
		var zero T
		return zero, false, ErrClosed
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.commit(key, payload, started, gen)
		return payload, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

func (s *Store[T]) revalidate(key string, fetch Fetcher[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen, started := s.gen, s.now()
	s.inflight.Add(1)
	s.mu.Unlock()

	done := s.group.DoChan("revalidate:"+key, func() (interface{}, error) {
		payload, err := fetch(s.ctx)
		if err != nil {
			s.logger.Debug("cache revalidation failed; keeping last known good", zap.String("key", key), zap.Error(err))
			return nil, err
		}
		s.commit(key, payload, started, gen)
		return nil, nil
	})
	go func() {
		<-done
		s.inflight.Done()
	}()
}

func (s *Store[T]) begin() (uint64, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.now(), !s.closed
}

// commit stores a fetched payload unless the store closed, the key was
// invalidated meanwhile, or a newer entry landed first.
func (s *Store[T]) commit(key string, payload T, fetchedAt time.Time, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	if current, ok := s.entries.Peek(key); ok && current.Timestamp.After(fetchedAt) {
		return
	}
	s.entries.Add(key, Entry[T]{Payload: payload, Timestamp: fetchedAt, Origin: OriginRemote})
}

// Set stores a confirmed payload stamped now.
func (s *Store[T]) Set(key string, payload T) {
	s.put(key, Entry[T]{Payload: payload, Timestamp: s.now(), Origin: OriginRemote})
}

// SetLocal stores an optimistic payload stamped now.
func (s *Store[T]) SetLocal(key string, payload T) {
	s.put(key, Entry[T]{Payload: payload, Timestamp: s.now(), Origin: OriginLocal})
}

// Merge applies a confirmed payload observed at ts. It replaces the current
// entry when ts is equal to or newer than the entry's timestamp.
func (s *Store[T]) Merge(key string, payload T, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if current, ok := s.entries.Peek(key); ok && ts.Before(current.Timestamp) {
		return false
	}
	s.entries.Add(key, Entry[T]{Payload: payload, Timestamp: ts, Origin: OriginRemote})
	return true
}

func (s *Store[T]) put(key string, entry Entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries.Add(key, entry)
}

// Peek returns the entry without touching recency.
func (s *Store[T]) Peek(key string) (Entry[T], bool) {
	return s.entries.Peek(key)
}

// Invalidate evicts key.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.entries.Remove(key)
}

// InvalidatePrefix evicts every key starting with prefix and returns how many were removed.
func (s *Store[T]) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	removed := 0
	for _, key := range s.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			if s.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len reports the number of cached entries.
func (s *Store[T]) Len() int {
	return s.entries.Len()
}

// Wait blocks until in-flight revalidations finish.
func (s *Store[T]) Wait() {
	s.inflight.Wait()
}

// Close cancels in-flight revalidations; their results are discarded.
func (s *Store[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.inflight.Wait()
}
