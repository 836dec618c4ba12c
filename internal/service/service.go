package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hendisantika/order-events/internal/repository"
)

// OrderService содержит бизнес-логику жизненного цикла заказа
// Каждая мутирующая операция: load -> валидация перехода -> persist -> событие -> снапшот
// Зависит от интерфейсов, что позволяет подменять хранилище и публикацию в тестах
type OrderService struct {
	logger    *zap.Logger
	orderRepo repository.OrderRepository
	// publisher используется только в режиме direct; nil в режиме outbox
	publisher EventPublisher
	// topic - Kafka топик доменных событий, он же пишется в outbox записи
	topic string
	// stageOutbox включает запись события в outbox в одной транзакции с заказом
	stageOutbox bool
}

// NewOrderService создаёт новый экземпляр OrderService
// Ровно один из механизмов доставки должен быть активен:
// либо publisher (direct), либо stageOutbox (transactional outbox)
func NewOrderService(
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	publisher EventPublisher,
	topic string,
	stageOutbox bool,
) *OrderService {
	return &OrderService{
		logger:      logger,
		orderRepo:   orderRepo,
		publisher:   publisher,
		topic:       topic,
		stageOutbox: stageOutbox,
	}
}

// CreateOrderInput содержит входные данные для создания заказа
type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	ProductName   string
	Quantity      int
	UnitPrice     decimal.Decimal
}

// CreateOrder создаёт заказ в статусе CREATED и эмитит ORDER_CREATED
// Возвращает *repository.ValidationError при некорректном входе
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (repository.Order, error) {
	order, err := repository.NewOrder(
		generateOrderNumber(),
		input.CustomerName,
		input.CustomerEmail,
		input.ProductName,
		input.Quantity,
		input.UnitPrice,
	)
	if err != nil {
		return repository.Order{}, err
	}

	saved, err := s.orderRepo.Create(ctx, order, s.eventFactory(EventOrderCreated))
	if err != nil {
		s.logger.Error("failed to create order",
			zap.Error(err),
			zap.String("order_number", order.Number),
		)
		return repository.Order{}, err
	}

	s.logger.Info("order created",
		zap.String("order_number", saved.Number),
		zap.String("total_amount", saved.TotalAmount.String()),
	)

	s.publishDirect(ctx, saved, EventOrderCreated)
	return saved, nil
}

// ConfirmOrder переводит заказ CREATED -> CONFIRMED и эмитит ORDER_CONFIRMED
func (s *OrderService) ConfirmOrder(ctx context.Context, number string) (repository.Order, error) {
	return s.transition(ctx, number, EventOrderConfirmed, repository.Status.Confirm)
}

// ShipOrder переводит заказ CONFIRMED -> SHIPPED и эмитит ORDER_SHIPPED
func (s *OrderService) ShipOrder(ctx context.Context, number string) (repository.Order, error) {
	return s.transition(ctx, number, EventOrderShipped, repository.Status.Ship)
}

// DeliverOrder переводит заказ SHIPPED -> DELIVERED и эмитит ORDER_DELIVERED
func (s *OrderService) DeliverOrder(ctx context.Context, number string) (repository.Order, error) {
	return s.transition(ctx, number, EventOrderDelivered, repository.Status.Deliver)
}

// CancelOrder переводит заказ в CANCELLED из любого нетерминального статуса
// и эмитит ORDER_CANCELLED
func (s *OrderService) CancelOrder(ctx context.Context, number string) (repository.Order, error) {
	return s.transition(ctx, number, EventOrderCancelled, repository.Status.Cancel)
}

// GetOrderByNumber получает заказ по номеру, без мутаций и событий
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (repository.Order, error) {
	return s.orderRepo.GetByNumber(ctx, number)
}

// GetOrdersByCustomerEmail получает все заказы клиента
func (s *OrderService) GetOrdersByCustomerEmail(ctx context.Context, email string) ([]repository.Order, error) {
	return s.orderRepo.GetByCustomerEmail(ctx, email)
}

// GetAllOrders получает все заказы
func (s *OrderService) GetAllOrders(ctx context.Context) ([]repository.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// transition выполняет общий сценарий перехода статуса:
// загрузка, валидация по таблице переходов, атомарная запись, эмиссия события
// Отклонённый переход не пишет в БД и не эмитит событие
func (s *OrderService) transition(
	ctx context.Context,
	number string,
	eventType EventType,
	next func(repository.Status) (repository.Status, error),
) (repository.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return repository.Order{}, err
	}

	to, err := next(order.Status)
	if err != nil {
		return repository.Order{}, err
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, number, order.Status, to, s.eventFactory(eventType))
	if err != nil {
		// Конкурентный переход успел раньше: перевалидируем от актуального статуса,
		// чтобы вернуть клиенту ошибку перехода, а не внутренний конфликт
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			if _, verr := next(conflict.Current); verr != nil {
				return repository.Order{}, verr
			}
		}
		s.logger.Error("failed to update order status",
			zap.Error(err),
			zap.String("order_number", number),
			zap.String("to_status", string(to)),
		)
		return repository.Order{}, err
	}

	s.logger.Info("order status updated",
		zap.String("order_number", updated.Number),
		zap.String("status", string(updated.Status)),
	)

	s.publishDirect(ctx, updated, eventType)
	return updated, nil
}

// eventFactory возвращает фабрику outbox события для режима outbox
// и nil для режима direct
func (s *OrderService) eventFactory(eventType EventType) repository.EventFactory {
	if !s.stageOutbox {
		return nil
	}
	return func(saved repository.Order) (*repository.OutboxEvent, error) {
		payload, err := json.Marshal(NewOrderEvent(saved, eventType))
		if err != nil {
			return nil, err
		}
		return &repository.OutboxEvent{
			EventID:     uuid.NewString(),
			Topic:       s.topic,
			AggregateID: saved.Number,
			Payload:     payload,
		}, nil
	}
}

// publishDirect синхронно публикует событие после коммита (режим direct)
// Ошибка публикации логируется и не откатывает уже сохранённое изменение:
// заказ остаётся источником истины, событие теряется
func (s *OrderService) publishDirect(ctx context.Context, order repository.Order, eventType EventType) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, NewOrderEvent(order, eventType)); err != nil {
		s.logger.Error("failed to publish order event",
			zap.Error(err),
			zap.String("event_type", string(eventType)),
			zap.String("order_number", order.Number),
		)
	}
}

// generateOrderNumber генерирует человекочитаемый номер заказа
// 12 hex символов из UUID: вероятность коллизии пренебрежимо мала
// даже на десятках тысяч заказов
func generateOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}
