package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	done      chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{pending: msgs, done: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.pending) == 0 {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func message(offset int64) kafka.Message {
	return kafka.Message{
		Topic:   "entity-notifications",
		Offset:  offset,
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("entity.updated")}},
	}
}

func TestConsumer(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	cfg := ConsumerConfig{Topic: "entity-notifications", MinRetryBackoff: time.Millisecond, MaxRetryBackoff: 2 * time.Millisecond}

	run := func(t *testing.T, reader *fakeReader, handler MessageHandler) {
		t.Helper()
		c := newConsumer(reader, cfg, logger, handler)
		require.NoError(t, c.Start(context.Background()))
		select {
		case <-reader.done:
		case <-time.After(2 * time.Second):
			t.Fatal("messages were not committed")
		}
		assert.True(t, c.Health())
		require.NoError(t, c.Stop())
		assert.False(t, c.Health())
	}

	t.Run("commits handled messages in order", func(t *testing.T) {
		reader := newFakeReader(message(1), message(2))
		var seen []string
		run(t, reader, func(_ context.Context, msg *IncomingMessage) error {
			seen = append(seen, msg.EventType())
			return nil
		})
		assert.Equal(t, []int64{1, 2}, reader.commits())
		assert.Equal(t, []string{"entity.updated", "entity.updated"}, seen)
	})

	t.Run("retries a transient failure before moving on", func(t *testing.T) {
		reader := newFakeReader(message(1), message(2))
		attempts := map[int64]int{}
		run(t, reader, func(_ context.Context, msg *IncomingMessage) error {
			attempts[msg.Offset]++
			if msg.Offset == 1 && attempts[1] < 3 {
				return errors.New("graph unavailable")
			}
			return nil
		})
		assert.Equal(t, 3, attempts[1])
		assert.Equal(t, 1, attempts[2])
		assert.Equal(t, []int64{1, 2}, reader.commits())
	})

	t.Run("commits permanent failures", func(t *testing.T) {
		reader := newFakeReader(message(7))
		calls := 0
		run(t, reader, func(context.Context, *IncomingMessage) error {
			calls++
			return fmt.Errorf("%w: bad payload", ErrPermanent)
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, []int64{7}, reader.commits())
	})
}
