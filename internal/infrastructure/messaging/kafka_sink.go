package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/event"
	"go.uber.org/zap"
)

// Header keys set on every published message
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
)

// ErrBrokerUnavailable is returned while the circuit breaker is open
var ErrBrokerUnavailable = errors.New("kafka broker unavailable")

// MessageWriter is the subset of *kafka.Writer the sink needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds producer settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	// BreakerFailures consecutive failures open the breaker for BreakerTimeout
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// NewKafkaWriter creates a writer that hashes the message key, so every
// event of one stock cell lands on the same partition in order.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// KafkaSink publishes outbox entries to Kafka behind a circuit breaker
type KafkaSink struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

// NewKafkaSink creates a sink around writer
func NewKafkaSink(writer MessageWriter, cfg KafkaConfig, logger *zap.Logger) *KafkaSink {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka:" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &KafkaSink{writer: writer, breaker: breaker, logger: logger}
}

// Deliver writes one entry. The partition key is the stock cell key carried by the entry.
func (s *KafkaSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	msg := kafka.Message{
		Key:   []byte(entry.PartitionKey),
		Value: entry.Payload,
		Time:  entry.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(entry.EventID.String())},
			{Key: HeaderEventType, Value: []byte(entry.EventType)},
			{Key: HeaderAggregateType, Value: []byte(entry.AggregateType)},
			{Key: HeaderAggregateID, Value: []byte(entry.AggregateID.String())},
		},
	}

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("write %s to kafka: %w", entry.EventType, err)
	}
	return nil
}

// State reports the breaker state, for health checks
func (s *KafkaSink) State() gobreaker.State {
	return s.breaker.State()
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

var _ event.OutboxSink = (*KafkaSink)(nil)
