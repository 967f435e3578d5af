package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

const typeDefsKey = "willow:typedefs"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// TypeDefCache shares one snapshot of the repository's type definitions between replicas.
// Redis failures fall through to the source.
type TypeDefCache struct {
	store  store
	source lineage.TypeDefSource
	ttl    time.Duration
	logger ectologger.Logger
}

// NewTypeDefCache caches source's definitions in client for ttl
func NewTypeDefCache(client *Client, source lineage.TypeDefSource, ttl time.Duration, logger ectologger.Logger) *TypeDefCache {
	return newTypeDefCache(client, source, ttl, logger)
}

func newTypeDefCache(s store, source lineage.TypeDefSource, ttl time.Duration, logger ectologger.Logger) *TypeDefCache {
	return &TypeDefCache{
		store:  s,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// GetTypeDefs returns the cached snapshot, loading it from the source on a miss.
func (c *TypeDefCache) GetTypeDefs(ctx context.Context) ([]models.TypeDef, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.TypeDefCache.GetTypeDefs")
	defer span.End()

	log := c.logger.WithContext(ctx).WithField("key", typeDefsKey)

	raw, err := c.store.Get(ctx, typeDefsKey)
	switch {
	case err == nil:
		var typeDefs []models.TypeDef
		if err := json.Unmarshal(raw, &typeDefs); err == nil {
			metrics.TypeDefCacheTotal.WithLabelValues("hit").Inc()
			return typeDefs, nil
		}
		log.Warn("Discarding unreadable type definition snapshot")
	case errors.Is(err, redis.Nil):
	default:
		metrics.TypeDefCacheTotal.WithLabelValues("error").Inc()
		log.WithError(err).Warn("Type definition cache unavailable, reading source")
		return c.source.GetTypeDefs(ctx)
	}

	metrics.TypeDefCacheTotal.WithLabelValues("miss").Inc()
	typeDefs, err := c.source.GetTypeDefs(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(typeDefs)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, typeDefsKey, data, c.ttl); err != nil {
		log.WithError(err).Warn("Failed to cache type definitions")
	}
	return typeDefs, nil
}

// Invalidate drops the shared snapshot so the next read goes to the source.
func (c *TypeDefCache) Invalidate(ctx context.Context) error {
	return c.store.Del(ctx, typeDefsKey)
}
