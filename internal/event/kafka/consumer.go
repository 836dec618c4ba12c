package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hendisantika/order-events/internal/service"
)

// EventHandler обрабатывает одно десериализованное доменное событие
// Реализуется service.OrderEventProcessor
type EventHandler interface {
	HandleOrderEvent(ctx context.Context, event service.OrderEvent) error
}

// OrderEventConsumer читает доменные события заказов из Kafka
// и диспетчеризует их по типу через handler
type OrderEventConsumer struct {
	logger       *zap.Logger
	reader       *kafka.Reader
	handler      EventHandler
	dlqPublisher *DLQPublisher
	maxAttempts  int
	backoffBase  time.Duration
}

// NewOrderEventConsumer создаёт новый consumer доменных событий заказа
func NewOrderEventConsumer(
	logger *zap.Logger,
	brokers []string,
	groupID, topic string,
	handler EventHandler,
	dlqPublisher *DLQPublisher,
	maxAttempts int,
	backoffBase time.Duration,
) *OrderEventConsumer {
	// Safety defaults на случай кривого env
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &OrderEventConsumer{
		logger:       logger,
		reader:       reader,
		handler:      handler,
		dlqPublisher: dlqPublisher,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
	}
}

// Start запускает consumer и блокируется до отмены контекста
// Использует FetchMessage + CommitMessages для ручного контроля offset
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID),
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka",
				zap.Error(err),
			)
			continue
		}

		c.processMessage(ctx, m)

		// Offset коммитится всегда: poison message уходит в DLQ и
		// не блокирует обработку последующих сообщений
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// processMessage десериализует и обрабатывает одно сообщение
// Любая ошибка обрабатывается локально: логируется, сообщение уходит в DLQ,
// поток сообщений не останавливается
func (c *OrderEventConsumer) processMessage(ctx context.Context, m kafka.Message) {
	event, err := service.DecodeOrderEvent(m.Value)
	if err != nil {
		c.logger.Error("failed to decode order event",
			zap.Error(err),
			zap.String("key", string(m.Key)),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		c.sendToDLQ(ctx, m, err, service.OrderEvent{})
		return
	}

	c.logger.Info("received order event",
		zap.String("event_type", string(event.EventType)),
		zap.String("order_number", event.OrderNumber),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	if err := c.handleWithRetry(ctx, event); err != nil {
		c.sendToDLQ(ctx, m, err, event)
	}
}

// handleWithRetry обрабатывает событие с ограниченным числом попыток
// Возвращает последнюю ошибку при исчерпании попыток: сообщение будет
// сброшено в DLQ, а не зациклено на бесконечный retry
func (c *OrderEventConsumer) handleWithRetry(ctx context.Context, event service.OrderEvent) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// Экспоненциальный backoff: base, 2*base, 4*base...
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			c.logger.Info("retrying order event",
				zap.String("order_number", event.OrderNumber),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.handler.HandleOrderEvent(ctx, event); err == nil {
			return nil
		} else {
			lastErr = err
			c.logger.Warn("failed to handle order event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
				zap.String("order_number", event.OrderNumber),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
			)
		}
	}

	c.logger.Error("exhausted all retry attempts, dropping order event",
		zap.Error(lastErr),
		zap.String("order_number", event.OrderNumber),
		zap.Int("max_attempts", c.maxAttempts),
	)
	return lastErr
}

// sendToDLQ отправляет необработанное сообщение в dead letter topic
// Ошибка отправки в DLQ логируется и глотается: терять DLQ запись
// допустимо, блокировать основной топик - нет
func (c *OrderEventConsumer) sendToDLQ(ctx context.Context, m kafka.Message, cause error, event service.OrderEvent) {
	if c.dlqPublisher == nil {
		return
	}
	if err := c.dlqPublisher.Publish(ctx, m, cause, string(event.EventType), event.OrderNumber); err != nil {
		c.logger.Error("failed to publish message to DLQ",
			zap.Error(err),
			zap.String("order_number", event.OrderNumber),
		)
	}
}

// Close закрывает Kafka reader
func (c *OrderEventConsumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.reader.Close()
}
