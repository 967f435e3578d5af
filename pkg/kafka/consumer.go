package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/willow/pkg/tracing"
)

// ErrPermanent marks a handler failure that retrying cannot fix. Such messages are committed
// and skipped.
var ErrPermanent = errors.New("permanent failure")

type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// messageReader is the part of kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads entity-change notifications one at a time. A message is committed once its
// handler succeeds or fails permanently; other failures are retried in place, so a partition
// never commits past a notification that has not been handled.
type Consumer struct {
	reader     messageReader
	topic      string
	logger     ectologger.Logger
	handler    MessageHandler
	minBackoff time.Duration
	maxBackoff time.Duration
	running    atomic.Bool
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// MinRetryBackoff and MaxRetryBackoff bound the doubling wait between retries of a failed
	// message. Zero values select 500ms and 30s.
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
}

func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(reader, cfg, logger, handler)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	if cfg.MinRetryBackoff <= 0 {
		cfg.MinRetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxRetryBackoff < cfg.MinRetryBackoff {
		cfg.MaxRetryBackoff = 30 * time.Second
	}
	return &Consumer{
		reader:     reader,
		topic:      cfg.Topic,
		logger:     logger,
		handler:    handler,
		minBackoff: cfg.MinRetryBackoff,
		maxBackoff: cfg.MaxRetryBackoff,
	}
}

// Start runs the consume loop until ctx ends or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running.Store(true)

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithField("topic", c.topic).Info("Notification consumer started")
	return nil
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.running.Store(false)

	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
			continue
		}

		if !c.handleWithRetry(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithContext(ctx).WithError(err).WithField("offset", msg.Offset).Error("Failed to commit message")
		}
	}
}

// handleWithRetry returns false only when ctx ended before the message was handled.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg, attempt)
		if err == nil || errors.Is(err, ErrPermanent) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, attempt int) error {
	incoming := newIncomingMessage(msg)
	ctx = tracing.ExtractTraceParent(ctx, incoming.TraceParent, incoming.TraceState)
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.handle")
	defer span.End()

	err := c.handler(ctx, incoming)
	if err == nil {
		return nil
	}

	log := c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"topic":      msg.Topic,
		"partition":  msg.Partition,
		"offset":     msg.Offset,
		"event_type": incoming.EventType(),
		"attempt":    attempt,
	})
	if errors.Is(err, ErrPermanent) {
		log.Warn("Skipping notification that cannot be processed")
	} else {
		log.Error("Failed to process notification, retrying")
	}
	return err
}

// Health reports whether the consume loop is running.
func (c *Consumer) Health() bool {
	return c.running.Load()
}
