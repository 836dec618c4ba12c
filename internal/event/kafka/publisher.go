package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hendisantika/order-events/internal/service"
)

// OrderEventPublisher реализует service.EventPublisher используя Kafka
// Ключ сообщения - номер заказа, Hash balancer отправляет все события
// одного заказа в одну партицию, что сохраняет их порядок для консьюмера
type OrderEventPublisher struct {
	logger *zap.Logger
	writer *kafka.Writer
	topic  string
}

// NewOrderEventPublisher создаёт новый Kafka publisher доменных событий заказа
// writeTimeout ограничивает синхронную публикацию в request-потоке
func NewOrderEventPublisher(logger *zap.Logger, brokers []string, topic string, writeTimeout time.Duration) *OrderEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
	}

	return &OrderEventPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Close закрывает Kafka writer
func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}

// PublishOrderEvent публикует событие изменения состояния заказа в Kafka
func (p *OrderEventPublisher) PublishOrderEvent(ctx context.Context, event service.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal order event",
			zap.Error(err),
			zap.String("event_type", string(event.EventType)),
			zap.String("order_number", event.OrderNumber),
		)
		return err
	}

	message := kafka.Message{
		Key:   []byte(event.OrderNumber),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.Error("failed to publish order event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("event_type", string(event.EventType)),
			zap.String("order_number", event.OrderNumber),
		)
		return err
	}

	p.logger.Info("order event published",
		zap.String("topic", p.topic),
		zap.String("event_type", string(event.EventType)),
		zap.String("order_number", event.OrderNumber),
	)

	return nil
}
