//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib" //для goose миграций

	"github.com/hendisantika/order-events/internal/repository"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// Поднимаем PostgreSQL контейнер через testcontainers
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("orders"),
		postgres.WithUsername("order_user"),
		postgres.WithPassword("order_password"),
	)
	require.NoError(t, err)
	defer func() {
		err := postgresContainer.Terminate(ctx)
		require.NoError(t, err)
	}()

	// Получаем DSN из контейнера
	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Открываем *sql.DB через pgx stdlib для goose миграций
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	// Ждём готовности БД через ping с retry
	var pingErr error
	for i := 0; i < 10; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, pingErr, "Failed to ping database after retries")

	// Вычисляем путь к migrations относительно текущего файла
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	// Текущий файл: internal/repository/postgres/repository_integration_test.go
	// Нужно получить: migrations в корне модуля
	testDir := filepath.Dir(filename)
	repoDir := filepath.Dir(testDir)     // internal/repository
	internalDir := filepath.Dir(repoDir) // internal
	moduleDir := filepath.Dir(internalDir)
	migrationsDir := filepath.Join(moduleDir, "migrations")

	// Накатываем миграции через goose
	err = goose.UpContext(ctx, db, migrationsDir)
	require.NoError(t, err, "Failed to run migrations")

	// Создаём pgxpool для repository
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	// Создаём repository
	repo := NewRepository(pool)

	newOrder := func(number, email string) repository.Order {
		order, err := repository.NewOrder(number, "John Doe", email, "Laptop", 2, decimal.RequireFromString("999.99"))
		require.NoError(t, err)
		return order
	}

	makeEvent := func(eventID string) repository.EventFactory {
		return func(saved repository.Order) (*repository.OutboxEvent, error) {
			return &repository.OutboxEvent{
				EventID:     eventID,
				Topic:       "order-events",
				AggregateID: saved.Number,
				Payload:     []byte(`{"orderNumber":"` + saved.Number + `"}`),
			}, nil
		}
	}

	t.Run("Create and GetByNumber", func(t *testing.T) {
		saved, err := repo.Create(ctx, newOrder("ORD-INT000000001", "john@example.com"), nil)
		require.NoError(t, err)

		// ID и таймстемпы назначила БД
		require.NotZero(t, saved.ID)
		require.False(t, saved.CreatedAt.IsZero())
		require.False(t, saved.UpdatedAt.IsZero())

		got, err := repo.GetByNumber(ctx, "ORD-INT000000001")
		require.NoError(t, err)
		require.Equal(t, saved.ID, got.ID)
		require.Equal(t, repository.StatusCreated, got.Status)

		// Decimal значения пережили запись и чтение без потери точности
		require.True(t, got.UnitPrice.Equal(decimal.RequireFromString("999.99")))
		require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1999.98")))
	})

	t.Run("GetByNumber_NotFound", func(t *testing.T) {
		_, err := repo.GetByNumber(ctx, "ORD-MISSING00000")
		require.True(t, errors.Is(err, repository.ErrNotFound), "Expected ErrNotFound, got: %v", err)
	})

	t.Run("Duplicate order number rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, newOrder("ORD-INT000000001", "john@example.com"), nil)
		require.Error(t, err)
	})

	t.Run("Queries", func(t *testing.T) {
		_, err := repo.Create(ctx, newOrder("ORD-INT000000002", "jane@example.com"), nil)
		require.NoError(t, err)

		byEmail, err := repo.GetByCustomerEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		require.Len(t, byEmail, 1)
		require.Equal(t, "ORD-INT000000002", byEmail[0].Number)

		byStatus, err := repo.GetByStatus(ctx, repository.StatusCreated)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(byStatus), 2)

		now := time.Now().UTC()
		between, err := repo.GetByCreatedBetween(ctx, now.Add(-time.Minute), now.Add(time.Minute))
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(between), 2)

		between, err = repo.GetByCreatedBetween(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Empty(t, between)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 2)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		_, err := repo.Create(ctx, newOrder("ORD-INT000000003", "john@example.com"), nil)
		require.NoError(t, err)

		updated, err := repo.UpdateStatus(ctx, "ORD-INT000000003",
			repository.StatusCreated, repository.StatusConfirmed, nil)
		require.NoError(t, err)
		require.Equal(t, repository.StatusConfirmed, updated.Status)
		require.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

		// Устаревший from: заказ уже CONFIRMED
		_, err = repo.UpdateStatus(ctx, "ORD-INT000000003",
			repository.StatusCreated, repository.StatusShipped, nil)
		var conflict *repository.StatusConflictError
		require.True(t, errors.As(err, &conflict), "Expected StatusConflictError, got: %v", err)
		require.Equal(t, repository.StatusConfirmed, conflict.Current)

		// Неизвестный номер
		_, err = repo.UpdateStatus(ctx, "ORD-MISSING00000",
			repository.StatusCreated, repository.StatusConfirmed, nil)
		require.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("Outbox lifecycle", func(t *testing.T) {
		_, err := repo.Create(ctx, newOrder("ORD-INT000000004", "john@example.com"), makeEvent("evt-int-1"))
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ctx, "ORD-INT000000004",
			repository.StatusCreated, repository.StatusConfirmed, makeEvent("evt-int-2"))
		require.NoError(t, err)

		pending, err := repo.GetPendingOutboxEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		// Порядок создания сохранён
		require.Equal(t, "evt-int-1", pending[0].EventID)
		require.Equal(t, "evt-int-2", pending[1].EventID)
		require.Equal(t, "ORD-INT000000004", pending[0].AggregateID)
		require.Equal(t, repository.OutboxStatusPending, pending[0].Status)
		require.JSONEq(t, `{"orderNumber":"ORD-INT000000004"}`, string(pending[0].Payload))

		require.NoError(t, repo.MarkOutboxEventSent(ctx, "evt-int-1"))
		pending, err = repo.GetPendingOutboxEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, "evt-int-2", pending[0].EventID)

		require.NoError(t, repo.MarkOutboxEventFailed(ctx, "evt-int-2", "broker unavailable"))
		pending, err = repo.GetPendingOutboxEvents(ctx, 10)
		require.NoError(t, err)
		require.Empty(t, pending)

		require.NoError(t, repo.ResetOutboxEventPending(ctx, "evt-int-2"))
		pending, err = repo.GetPendingOutboxEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, "broker unavailable", pending[0].LastError)

		require.Error(t, repo.MarkOutboxEventSent(ctx, "evt-missing"))
	})

	t.Run("Rejected transition leaves no outbox record", func(t *testing.T) {
		_, err := repo.Create(ctx, newOrder("ORD-INT000000005", "john@example.com"), nil)
		require.NoError(t, err)

		failing := func(saved repository.Order) (*repository.OutboxEvent, error) {
			return nil, errors.New("marshal failed")
		}
		_, err = repo.UpdateStatus(ctx, "ORD-INT000000005",
			repository.StatusCreated, repository.StatusConfirmed, failing)
		require.Error(t, err)

		// Транзакция откатилась целиком: статус не изменился
		got, err := repo.GetByNumber(ctx, "ORD-INT000000005")
		require.NoError(t, err)
		require.Equal(t, repository.StatusCreated, got.Status)
	})
}
