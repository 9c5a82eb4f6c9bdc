package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"OmniSpectrum/pkg/logger"
	"OmniSpectrum/pkg/retrier"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads each registered topic in its own goroutine. Messages of a
// topic are handled one at a time and committed after handling.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	dlq      *kafka.Writer
	hook     ConsumerHook
	retry    *retrier.Retrier

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "default",
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
		retry: retrier.New(
			retrier.WithMaxRetries(cfg.RetryMax),
			retrier.WithInitialInterval(cfg.BackoffMin),
			retrier.WithMaxInterval(cfg.BackoffMax),
			retrier.WithJitter(0.5),
		),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	initConsumerMetrics()
	return c, nil
}

// RegisterHandler registers a handler for its topic. Must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one reader goroutine per registered topic.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for topic, handler := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = reader

		c.wg.Add(1)
		go c.consume(ctx, reader, handler)
		c.log.Info("kafka consumer started", logger.String("topic", topic), logger.String("group", c.cfg.GroupID))
	}
	return nil
}

// Stop cancels the readers and waits for in-flight handlers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("close kafka reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", logger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	defer c.wg.Done()
	topic := handler.Topic()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retry.Backoff(1)):
			}
			continue
		}

		start := time.Now()
		err = c.process(ctx, handler, msg)
		consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

		if err != nil {
			consumerFailures.WithLabelValues(topic).Inc()
			c.log.Error("kafka handler failed", logger.String("topic", topic), logger.Int64("offset", msg.Offset), logger.Error(err))
			if c.dlq == nil {
				// Leave the offset uncommitted so the message is redelivered after a restart.
				continue
			}
			c.deadLetter(ctx, topic, msg)
		}

		if err := reader.CommitMessages(context.Background(), msg); err != nil {
			c.log.Warn("kafka commit failed", logger.String("topic", topic), logger.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	return c.retry.Do(ctx, func(ctx context.Context) (err error) {
		hctx, hmsg, data, err := c.hook.BeforeHandle(ctx, msg.Topic, msg, msg.Value)
		if err != nil {
			c.hook.OnError(ctx, msg.Topic, msg, msg.Value, err)
			return retrier.Permanent(err)
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
			c.hook.AfterHandle(hctx, msg.Topic, hmsg, data, err)
			if err != nil {
				c.hook.OnError(hctx, msg.Topic, hmsg, data, err)
			}
		}()
		return handler.Handle(hctx, data)
	})
}

func (c *Consumer) deadLetter(ctx context.Context, topic string, msg kafka.Message) {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", logger.String("dlq", c.cfg.DLQTopic), logger.Error(err))
	}
}

var (
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
	consumerOnce          sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "omnispectrum_kafka_consumer_handle_seconds",
			Help: "Handling time per message",
		}, []string{"topic"})
		consumerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnispectrum_kafka_consumer_failures_total",
			Help: "Messages whose handler failed after all retries",
		}, []string{"topic"})
	})
}
