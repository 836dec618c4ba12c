package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hendisantika/order-events/internal/repository"
)

// orderColumns - общий список колонок для SELECT/RETURNING
// Денежные колонки читаются как text и парсятся в decimal без потери точности
const orderColumns = `id, order_number, customer_name, customer_email, product_name,
	quantity, unit_price::text, total_amount::text, status, created_at, updated_at`

// Repository реализует OrderRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Create сохраняет новый заказ и outbox событие в одной транзакции
// ID и таймстемпы назначает БД (BIGSERIAL + DEFAULT now())
func (r *Repository) Create(ctx context.Context, order repository.Order, makeEvent repository.EventFactory) (repository.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return repository.Order{}, err
	}
	// Гарантируем откат транзакции в случае ошибки
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, customer_name, customer_email, product_name,
		                     quantity, unit_price, total_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8)
		 RETURNING `+orderColumns,
		order.Number, order.CustomerName, order.CustomerEmail, order.ProductName,
		order.Quantity, order.UnitPrice.String(), order.TotalAmount.String(), string(order.Status))

	saved, err := scanOrder(row)
	if err != nil {
		return repository.Order{}, err
	}

	if err := r.stageOutboxEvent(ctx, tx, saved, makeEvent); err != nil {
		return repository.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Order{}, err
	}
	return saved, nil
}

// GetByNumber получает заказ по номеру
func (r *Repository) GetByNumber(ctx context.Context, number string) (repository.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, repository.ErrNotFound
		}
		return repository.Order{}, err
	}
	return order, nil
}

// GetByCustomerEmail получает все заказы клиента
func (r *Repository) GetByCustomerEmail(ctx context.Context, email string) ([]repository.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_email = $1 ORDER BY id`, email)
}

// GetByStatus получает все заказы в указанном статусе
func (r *Repository) GetByStatus(ctx context.Context, status repository.Status) ([]repository.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY id`, string(status))
}

// GetByCreatedBetween получает заказы, созданные в интервале [from, to]
func (r *Repository) GetByCreatedBetween(ctx context.Context, from, to time.Time) ([]repository.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE created_at BETWEEN $1 AND $2 ORDER BY id`, from, to)
}

// GetAll получает все заказы
func (r *Repository) GetAll(ctx context.Context) ([]repository.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

// UpdateStatus атомарно переводит заказ из from в to
// SELECT FOR UPDATE блокирует строку на время транзакции: конкурентный переход
// либо ждёт и увидит новый статус, либо получит StatusConflictError
func (r *Repository) UpdateStatus(ctx context.Context, number string, from, to repository.Status, makeEvent repository.EventFactory) (repository.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return repository.Order{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 FOR UPDATE`, number)

	current, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, repository.ErrNotFound
		}
		return repository.Order{}, err
	}
	if current.Status != from {
		return repository.Order{}, &repository.StatusConflictError{Current: current.Status}
	}

	row = tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE order_number = $1
		 RETURNING `+orderColumns,
		number, string(to))

	updated, err := scanOrder(row)
	if err != nil {
		return repository.Order{}, err
	}

	if err := r.stageOutboxEvent(ctx, tx, updated, makeEvent); err != nil {
		return repository.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Order{}, err
	}
	return updated, nil
}

// GetPendingOutboxEvents возвращает pending события в порядке создания
// Порядок по id сохраняет порядок эмиссии событий одного заказа
func (r *Repository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_id, topic, aggregate_id, payload, status, COALESCE(last_error, ''), created_at
		 FROM outbox_events
		 WHERE status = $1
		 ORDER BY id
		 LIMIT $2`,
		repository.OutboxStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]repository.OutboxEvent, 0)
	for rows.Next() {
		var evt repository.OutboxEvent
		if err := rows.Scan(&evt.EventID, &evt.Topic, &evt.AggregateID, &evt.Payload,
			&evt.Status, &evt.LastError, &evt.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// MarkOutboxEventSent отмечает событие как опубликованное
func (r *Repository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return r.setOutboxStatus(ctx,
		`UPDATE outbox_events SET status = $2, last_error = NULL, sent_at = now() WHERE event_id = $1`,
		eventID, repository.OutboxStatusSent)
}

// MarkOutboxEventFailed отмечает событие как неудачное с текстом ошибки
func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID, reason string) error {
	return r.setOutboxStatus(ctx,
		`UPDATE outbox_events SET status = $2, last_error = $3 WHERE event_id = $1`,
		eventID, repository.OutboxStatusFailed, reason)
}

// ResetOutboxEventPending возвращает событие в pending для следующего цикла dispatcher
func (r *Repository) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return r.setOutboxStatus(ctx,
		`UPDATE outbox_events SET status = $2 WHERE event_id = $1`,
		eventID, repository.OutboxStatusPending)
}

func (r *Repository) setOutboxStatus(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event not found")
	}
	return nil
}

// stageOutboxEvent вставляет outbox запись внутри переданной транзакции
func (r *Repository) stageOutboxEvent(ctx context.Context, tx pgx.Tx, saved repository.Order, makeEvent repository.EventFactory) error {
	if makeEvent == nil {
		return nil
	}
	evt, err := makeEvent(saved)
	if err != nil {
		return err
	}
	if evt == nil {
		return nil
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox_events (event_id, topic, aggregate_id, payload, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		evt.EventID, evt.Topic, evt.AggregateID, evt.Payload, repository.OutboxStatusPending)
	return err
}

func (r *Repository) queryOrders(ctx context.Context, sql string, args ...any) ([]repository.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]repository.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// scanOrder читает одну строку orders в доменную модель
func scanOrder(row pgx.Row) (repository.Order, error) {
	var (
		order       repository.Order
		unitPrice   string
		totalAmount string
		status      string
	)
	if err := row.Scan(&order.ID, &order.Number, &order.CustomerName, &order.CustomerEmail,
		&order.ProductName, &order.Quantity, &unitPrice, &totalAmount, &status,
		&order.CreatedAt, &order.UpdatedAt); err != nil {
		return repository.Order{}, err
	}

	var err error
	if order.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return repository.Order{}, fmt.Errorf("invalid unit_price in storage: %w", err)
	}
	if order.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return repository.Order{}, fmt.Errorf("invalid total_amount in storage: %w", err)
	}
	if order.Status, err = repository.ParseStatus(status); err != nil {
		return repository.Order{}, err
	}
	return order, nil
}
