package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/models"
)

type memoryStore struct {
	data   map[string][]byte
	getErr error
	ttl    time.Duration
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	m.ttl = expiration
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type staticSource struct {
	typeDefs []models.TypeDef
	calls    int
}

func (s *staticSource) GetTypeDefs(context.Context) ([]models.TypeDef, error) {
	s.calls++
	return s.typeDefs, nil
}

func TestTypeDefCache(t *testing.T) {
	ctx := context.Background()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	defs := []models.TypeDef{{GUID: "1", Name: "DataFile", SuperType: "DataStore"}}

	t.Run("miss then hit", func(t *testing.T) {
		s := &memoryStore{data: map[string][]byte{}}
		source := &staticSource{typeDefs: defs}
		cache := newTypeDefCache(s, source, time.Minute, logger)

		got, err := cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		assert.Equal(t, defs, got)
		assert.Equal(t, time.Minute, s.ttl)

		got, err = cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		assert.Equal(t, defs, got)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("invalidate", func(t *testing.T) {
		s := &memoryStore{data: map[string][]byte{}}
		source := &staticSource{typeDefs: defs}
		cache := newTypeDefCache(s, source, time.Minute, logger)

		_, err := cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		require.NoError(t, cache.Invalidate(ctx))
		_, err = cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("redis down reads the source", func(t *testing.T) {
		s := &memoryStore{data: map[string][]byte{}, getErr: errors.New("connection refused")}
		source := &staticSource{typeDefs: defs}
		cache := newTypeDefCache(s, source, time.Minute, logger)

		got, err := cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		assert.Equal(t, defs, got)
		assert.Empty(t, s.data)
	})

	t.Run("corrupt snapshot is replaced", func(t *testing.T) {
		s := &memoryStore{data: map[string][]byte{typeDefsKey: []byte("{")}}
		source := &staticSource{typeDefs: defs}
		cache := newTypeDefCache(s, source, time.Minute, logger)

		got, err := cache.GetTypeDefs(ctx)
		require.NoError(t, err)
		assert.Equal(t, defs, got)
		assert.JSONEq(t, `[{"guid":"1","name":"DataFile","super_type":"DataStore"}]`, string(s.data[typeDefsKey]))
	})
}
