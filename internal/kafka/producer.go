package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// Topics published by the payment service. payment.persistence_failed is the
// dead letter for charges that succeeded at the gateway but could not be
// recorded locally.
const (
	TopicPaymentCreated           = "payment.created"
	TopicPaymentUpdated           = "payment.updated"
	TopicPaymentPersistenceFailed = "payment.persistence_failed"
)

// Producer publishes payment events. Implementations must be safe for
// concurrent use by request handlers.
type Producer interface {
	// PublishPaymentEvent sends one event to the given topic. The payment id
	// is used as the message key so all events for one payment land in the
	// same partition, preserving their order.
	PublishPaymentEvent(ctx context.Context, topic string, event *models.PaymentEvent) error
	Close() error
}

type saramaProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewProducer creates a synchronous sarama producer.
func NewProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &saramaProducer{producer: producer, log: log}, nil
}

func (p *saramaProducer) PublishPaymentEvent(ctx context.Context, topic string, event *models.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("Failed to marshal payment event", "error", err, "topic", topic, "paymentID", event.PaymentID)
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.PaymentID),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Errorw("Failed to publish payment event", "error", err, "topic", topic, "paymentID", event.PaymentID)
		return fmt.Errorf("kafka: failed to send message: %w", err)
	}

	p.log.Debugw("Payment event published",
		"topic", topic, "paymentID", event.PaymentID, "partition", partition, "offset", offset)
	return nil
}

func (p *saramaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}
