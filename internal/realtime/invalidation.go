package realtime

import (
	"context"

	"go.uber.org/zap"
)

// Evictor drops cached entries under a key prefix.
type Evictor interface {
	InvalidatePrefix(prefix string) int
}

// BroadcastInvalidator evicts from the local cache and announces the eviction
// so that every other instance drops the same entries.
type BroadcastInvalidator struct {
	local     Evictor
	publisher Publisher
	logger    *zap.Logger
}

// NewBroadcastInvalidator pairs the local cache with the cross-instance publisher.
func NewBroadcastInvalidator(local Evictor, publisher Publisher, logger *zap.Logger) *BroadcastInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastInvalidator{local: local, publisher: publisher, logger: logger}
}

// InvalidatePrefix evicts locally, then publishes. A failed publish is logged;
// remote copies then expire with their TTL.
func (b *BroadcastInvalidator) InvalidatePrefix(prefix string) int {
	evicted := b.local.InvalidatePrefix(prefix)
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, Message{Kind: KindCacheInvalidate, CachePrefix: prefix}); err != nil {
		b.logger.Warn("cache invalidation not broadcast", zap.String("prefix", prefix), zap.Error(err))
	}
	return evicted
}
