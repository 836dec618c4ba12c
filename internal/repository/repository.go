package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound возвращается, когда заказ не найден в хранилище
var ErrNotFound = errors.New("order not found")

// InvalidTransitionError возвращается при попытке невалидного перехода статуса
// Содержит текущий статус и статусы, из которых переход был бы разрешён,
// чтобы клиент мог отличить "не тот статус" от "не существует"
type InvalidTransitionError struct {
	Action   string
	From     Status
	Required []Status
}

func (e *InvalidTransitionError) Error() string {
	required := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		required = append(required, string(s))
	}
	return fmt.Sprintf("cannot %s order: status is %s, requires %s",
		e.Action, e.From, strings.Join(required, " or "))
}

// ValidationError возвращается при некорректных входных данных создания заказа
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StatusConflictError возвращается из UpdateStatus, когда статус заказа
// изменился конкурентно между чтением и записью
type StatusConflictError struct {
	Current Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("order status changed concurrently, current status is %s", e.Current)
}

// Статусы записи в outbox таблице
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OutboxEvent представляет событие, ожидающее публикации в Kafka
// Записывается в одной транзакции с изменением заказа (transactional outbox)
type OutboxEvent struct {
	EventID string
	Topic   string
	// AggregateID - номер заказа, используется как partition key при публикации
	AggregateID string
	Payload     []byte
	Status      string
	LastError   string
	CreatedAt   time.Time
	SentAt      time.Time
}

// EventFactory строит outbox событие по сохранённому снапшоту заказа
// Вызывается репозиторием внутри транзакции, когда ID и таймстемпы уже назначены
// nil фабрика означает "событие не нужно" (режим прямой публикации)
type EventFactory func(Order) (*OutboxEvent, error)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository определяет интерфейс для работы с хранилищем заказов
// Service слой зависит от этого интерфейса, а не от конкретной реализации
type OrderRepository interface {
	// Create сохраняет новый заказ и, если makeEvent != nil, outbox событие
	// в одной транзакции. Возвращает заказ с назначенными ID и таймстемпами
	Create(ctx context.Context, order Order, makeEvent EventFactory) (Order, error)

	// GetByNumber получает заказ по номеру
	// Возвращает ErrNotFound, если заказ не найден
	GetByNumber(ctx context.Context, number string) (Order, error)

	// GetByCustomerEmail получает все заказы клиента
	GetByCustomerEmail(ctx context.Context, email string) ([]Order, error)

	// GetByStatus получает все заказы в указанном статусе
	GetByStatus(ctx context.Context, status Status) ([]Order, error)

	// GetByCreatedBetween получает заказы, созданные в интервале [from, to]
	GetByCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)

	// GetAll получает все заказы
	GetAll(ctx context.Context) ([]Order, error)

	// UpdateStatus атомарно переводит заказ из статуса from в статус to
	// и обновляет updated_at. Чтение и запись выполняются в одной транзакции
	// с блокировкой строки, поэтому два конкурентных перехода не могут
	// оба пройти по устаревшему статусу.
	// Возвращает ErrNotFound, если номер неизвестен,
	// *StatusConflictError - если текущий статус не равен from
	UpdateStatus(ctx context.Context, number string, from, to Status, makeEvent EventFactory) (Order, error)

	// GetPendingOutboxEvents возвращает pending события в порядке создания
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkOutboxEventSent отмечает событие как опубликованное
	MarkOutboxEventSent(ctx context.Context, eventID string) error

	// MarkOutboxEventFailed отмечает событие как неудачное с текстом ошибки
	MarkOutboxEventFailed(ctx context.Context, eventID, reason string) error

	// ResetOutboxEventPending возвращает событие в pending для повторной попытки
	ResetOutboxEventPending(ctx context.Context, eventID string) error
}
