package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Abu-doc/Cart/internal/circuitbreaker"
	"github.com/Abu-doc/Cart/internal/domain"
)

const EventTypeCheckoutCompleted = "CheckoutCompleted"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReceiptPublisher announces completed checkouts on a Kafka topic.
// Writes go through a circuit breaker so an unreachable broker fails fast.
type ReceiptPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	logger  *zap.Logger
}

func NewReceiptPublisher(topic string, logger *zap.Logger, brokers ...string) *ReceiptPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newReceiptPublisher(w, circuitbreaker.DefaultSettings("kafka-"+topic), logger)
}

func newReceiptPublisher(w messageWriter, s circuitbreaker.Settings, logger *zap.Logger) *ReceiptPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptPublisher{
		writer:  w,
		breaker: circuitbreaker.New[struct{}](s, logger),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (p *ReceiptPublisher) PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CartID), // keeps one cart's receipts ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCheckoutCompleted)},
			{Key: "receipt_id", Value: []byte(event.Receipt.ReceiptID)},
		},
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if circuitbreaker.IsRejected(err) {
		return fmt.Errorf("publish receipt %s: broker circuit open: %w", event.Receipt.ReceiptID, err)
	}
	if err != nil {
		return fmt.Errorf("publish receipt %s: %w", event.Receipt.ReceiptID, err)
	}

	p.logger.Debug("receipt published", zap.String("receipt_id", event.Receipt.ReceiptID))
	return nil
}

func (p *ReceiptPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
