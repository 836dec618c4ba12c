package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hendisantika/order-events/internal/repository"
)

// MemoryRepository реализует OrderRepository используя in-memory хранилище
// Используется для разработки и тестирования
// В production заменяется на PostgreSQL реализацию
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]repository.Order
	outbox []repository.OutboxEvent
	nextID int64
}

// NewMemoryRepository создаёт новый in-memory репозиторий
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[string]repository.Order),
		nextID: 1,
	}
}

// Create сохраняет новый заказ, назначая ID и таймстемпы
// Мьютекс обеспечивает ту же атомарность, что транзакция в PostgreSQL реализации
func (r *MemoryRepository) Create(ctx context.Context, order repository.Order, makeEvent repository.EventFactory) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	order.ID = r.nextID
	order.CreatedAt = now
	order.UpdatedAt = now

	if makeEvent != nil {
		evt, err := makeEvent(order)
		if err != nil {
			return repository.Order{}, err
		}
		if evt != nil {
			r.stageOutboxLocked(*evt, now)
		}
	}

	r.nextID++
	r.orders[order.Number] = order
	return order, nil
}

// GetByNumber получает заказ по номеру
func (r *MemoryRepository) GetByNumber(ctx context.Context, number string) (repository.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[number]
	if !exists {
		return repository.Order{}, repository.ErrNotFound
	}
	return order, nil
}

// GetByCustomerEmail получает все заказы клиента
func (r *MemoryRepository) GetByCustomerEmail(ctx context.Context, email string) ([]repository.Order, error) {
	return r.filter(func(o repository.Order) bool { return o.CustomerEmail == email }), nil
}

// GetByStatus получает все заказы в указанном статусе
func (r *MemoryRepository) GetByStatus(ctx context.Context, status repository.Status) ([]repository.Order, error) {
	return r.filter(func(o repository.Order) bool { return o.Status == status }), nil
}

// GetByCreatedBetween получает заказы, созданные в интервале [from, to]
func (r *MemoryRepository) GetByCreatedBetween(ctx context.Context, from, to time.Time) ([]repository.Order, error) {
	return r.filter(func(o repository.Order) bool {
		return !o.CreatedAt.Before(from) && !o.CreatedAt.After(to)
	}), nil
}

// GetAll получает все заказы
func (r *MemoryRepository) GetAll(ctx context.Context) ([]repository.Order, error) {
	return r.filter(func(repository.Order) bool { return true }), nil
}

// UpdateStatus атомарно переводит заказ из from в to
// Проверка from под мьютексом эквивалентна SELECT FOR UPDATE в PostgreSQL
func (r *MemoryRepository) UpdateStatus(ctx context.Context, number string, from, to repository.Status, makeEvent repository.EventFactory) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.orders[number]
	if !exists {
		return repository.Order{}, repository.ErrNotFound
	}
	if order.Status != from {
		return repository.Order{}, &repository.StatusConflictError{Current: order.Status}
	}

	now := time.Now().UTC()
	order.Status = to
	order.UpdatedAt = now

	if makeEvent != nil {
		evt, err := makeEvent(order)
		if err != nil {
			return repository.Order{}, err
		}
		if evt != nil {
			r.stageOutboxLocked(*evt, now)
		}
	}

	r.orders[number] = order
	return order, nil
}

// GetPendingOutboxEvents возвращает pending события в порядке создания
func (r *MemoryRepository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]repository.OutboxEvent, 0)
	for _, evt := range r.outbox {
		if evt.Status == repository.OutboxStatusPending {
			pending = append(pending, evt)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// MarkOutboxEventSent отмечает событие как опубликованное
func (r *MemoryRepository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return r.setOutboxStatus(eventID, repository.OutboxStatusSent, "")
}

// MarkOutboxEventFailed отмечает событие как неудачное
func (r *MemoryRepository) MarkOutboxEventFailed(ctx context.Context, eventID, reason string) error {
	return r.setOutboxStatus(eventID, repository.OutboxStatusFailed, reason)
}

// ResetOutboxEventPending возвращает событие в pending
func (r *MemoryRepository) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return r.setOutboxStatus(eventID, repository.OutboxStatusPending, "")
}

// OutboxEvents возвращает копию всех outbox записей, используется в тестах
func (r *MemoryRepository) OutboxEvents() []repository.OutboxEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]repository.OutboxEvent, len(r.outbox))
	copy(events, r.outbox)
	return events
}

func (r *MemoryRepository) stageOutboxLocked(evt repository.OutboxEvent, now time.Time) {
	evt.Status = repository.OutboxStatusPending
	evt.CreatedAt = now
	r.outbox = append(r.outbox, evt)
}

func (r *MemoryRepository) setOutboxStatus(eventID, status, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.outbox {
		if r.outbox[i].EventID == eventID {
			r.outbox[i].Status = status
			r.outbox[i].LastError = lastError
			if status == repository.OutboxStatusSent {
				r.outbox[i].SentAt = time.Now().UTC()
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *MemoryRepository) filter(keep func(repository.Order) bool) []repository.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]repository.Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	// Стабильный порядок для предсказуемых ответов и тестов
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}
