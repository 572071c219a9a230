package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Publisher writes a batch of envelopes to the analytics sink
type Publisher interface {
	Publish(ctx context.Context, batch []Envelope) error
	Close() error
}

// KafkaPublisher publishes JSON envelopes to one topic
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: batchTimeout,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Transport:    &kafka.Transport{ClientID: cfg.ClientID},
		},
		logger: logger.Named("kafka-publisher"),
	}
}

// Publish serialises the batch and writes it in one call
func (p *KafkaPublisher) Publish(ctx context.Context, batch []Envelope) error {
	messages := make([]kafka.Message, 0, len(batch))
	for _, env := range batch {
		value, err := json.Marshal(env)
		if err != nil {
			return eris.Wrapf(err, "marshal event %s", env.Type)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(env.partitionKey()),
			Value: value,
			Time:  env.At,
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return eris.Wrap(err, "publish to kafka")
	}
	p.logger.Debug("batch published", zap.Int("count", len(messages)))
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// CollectorOptions tunes the background shipper
type CollectorOptions struct {
	Source        string
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events in memory and ships them from one goroutine. A full buffer drops events.
type Collector struct {
	publisher Publisher
	opts      CollectorOptions
	events    chan Envelope
	done      chan struct{}
	started   atomic.Bool
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	dropped   atomic.Int64
	logger    *zap.Logger
}

var _ outbound.TelemetryEmitter = (*Collector)(nil)

// NewCollector creates a collector; call Start before emitting
func NewCollector(publisher Publisher, opts CollectorOptions, logger *zap.Logger) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.Source == "" {
		opts.Source = "cookcard"
	}
	return &Collector{
		publisher: publisher,
		opts:      opts,
		events:    make(chan Envelope, opts.BufferSize),
		done:      make(chan struct{}),
		logger:    logger.Named("telemetry-collector"),
	}
}

// Emit enqueues the event and returns immediately
func (c *Collector) Emit(_ context.Context, eventType string, fields map[string]any) {
	env := NewEnvelope(c.opts.Source, eventType, fields)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- env:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("telemetry buffer full, dropping events", zap.Int64("dropped_total", n))
		}
	}
}

// Dropped reports how many events were discarded
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Start runs the shipping loop until Close
func (c *Collector) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
	c.logger.Info("telemetry collector started",
		zap.Int("buffer_size", c.opts.BufferSize),
		zap.Int("batch_size", c.opts.BatchSize),
	)
}

func (c *Collector) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Envelope, 0, c.opts.BatchSize)
	for {
		select {
		case env, ok := <-c.events:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, env)
			if len(batch) >= c.opts.BatchSize {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (c *Collector) flush(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.publisher.Publish(ctx, batch); err != nil {
		c.logger.Error("failed to publish telemetry batch", zap.Int("count", len(batch)), zap.Error(err))
	}
}

// Close drains buffered events, flushes them and closes the publisher
func (c *Collector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()

		if c.started.Load() {
			<-c.done
		}
		err = c.publisher.Close()
	})
	return err
}
