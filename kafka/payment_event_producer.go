package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

// PaymentEventProducer publishes payment lifecycle events, keyed by
// payment id so per-payment ordering is preserved.
type PaymentEventProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Kafka payment event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &PaymentEventProducer{writer: w, logger: logger}
}

func (p *PaymentEventProducer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Info("Payment event published",
		zap.String("type", event.Type),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}

func (p *PaymentEventProducer) Close() {
	_ = p.writer.Close()
}
