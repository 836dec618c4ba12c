package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hendisantika/order-events/internal/repository"
)

// EventType - закрытое множество типов доменных событий заказа
// Новый тип события - это новая константа и новая ветка в dispatch,
// видимая на этапе компиляции, а не сравнение строковых литералов
type EventType string

const (
	EventOrderCreated   EventType = "ORDER_CREATED"
	EventOrderConfirmed EventType = "ORDER_CONFIRMED"
	EventOrderShipped   EventType = "ORDER_SHIPPED"
	EventOrderDelivered EventType = "ORDER_DELIVERED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
)

// OrderEvent представляет доменное событие изменения состояния заказа
// Сериализуется в JSON как тело Kafka сообщения; имена полей - контракт
// с консьюмерами, decimal поля сериализуются как точные строки,
// Timestamp - момент перехода, отличный от updatedAt заказа
type OrderEvent struct {
	EventType     EventType       `json:"eventType"`
	OrderID       int64           `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	ProductName   string          `json:"productName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOrderEvent строит событие из снапшота заказа на момент перехода
func NewOrderEvent(order repository.Order, eventType EventType) OrderEvent {
	return OrderEvent{
		EventType:     eventType,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		ProductName:   order.ProductName,
		Quantity:      order.Quantity,
		UnitPrice:     order.UnitPrice,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		Timestamp:     time.Now().UTC(),
	}
}

// DecodeOrderEvent десериализует тело Kafka сообщения в OrderEvent
// Событие без номера заказа считается нечитаемым (poison message)
func DecodeOrderEvent(payload []byte) (OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return OrderEvent{}, err
	}
	if event.OrderNumber == "" {
		return OrderEvent{}, &DecodeError{Field: "orderNumber", Message: "orderNumber is required"}
	}
	return event, nil
}

// DecodeError представляет ошибку десериализации события
type DecodeError struct {
	Field   string
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

// OrderEventProcessor обрабатывает доменные события заказов из Kafka
// Обработчики наблюдательные: логируют активность и не мутируют заказ,
// дальнейший workflow подключается сюда же
type OrderEventProcessor struct {
	logger *zap.Logger
}

// NewOrderEventProcessor создаёт новый processor
func NewOrderEventProcessor(logger *zap.Logger) *OrderEventProcessor {
	return &OrderEventProcessor{
		logger: logger,
	}
}

// HandleOrderEvent диспетчеризует событие по типу
// Неизвестный тип - warning, не ошибка: консьюмер не должен падать
// на событиях из более новых версий сервиса
func (p *OrderEventProcessor) HandleOrderEvent(ctx context.Context, event OrderEvent) error {
	switch event.EventType {
	case EventOrderCreated:
		p.logger.Info("processing order creation",
			zap.String("order_number", event.OrderNumber),
			zap.String("customer_email", event.CustomerEmail),
			zap.String("total_amount", event.TotalAmount.String()),
		)
	case EventOrderConfirmed:
		p.logger.Info("processing order confirmation",
			zap.String("order_number", event.OrderNumber),
		)
	case EventOrderShipped:
		p.logger.Info("processing order shipment",
			zap.String("order_number", event.OrderNumber),
		)
	case EventOrderDelivered:
		p.logger.Info("processing order delivery",
			zap.String("order_number", event.OrderNumber),
		)
	case EventOrderCancelled:
		p.logger.Info("processing order cancellation",
			zap.String("order_number", event.OrderNumber),
			zap.String("status", event.Status),
		)
	default:
		p.logger.Warn("unknown order event type",
			zap.String("event_type", string(event.EventType)),
			zap.String("order_number", event.OrderNumber),
		)
	}
	return nil
}
