package app

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httpapi "github.com/hendisantika/order-events/internal/api/http"
	"github.com/hendisantika/order-events/internal/config"
	eventkafka "github.com/hendisantika/order-events/internal/event/kafka"
	"github.com/hendisantika/order-events/internal/repository/postgres"
	"github.com/hendisantika/order-events/internal/service"
	platformlogging "github.com/hendisantika/order-events/platform/logging"
	platformshutdown "github.com/hendisantika/order-events/platform/shutdown"
)

// App содержит все зависимости для запуска и корректного shutdown Order Events Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	consumer    *eventkafka.OrderEventConsumer
	dispatcher  *eventkafka.OutboxDispatcher
	workerCtx   context.Context
	shutdownMgr *platformshutdown.Manager
	readiness   func() bool
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости сервиса
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	// Создаём logger
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "order-events",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Order Events service", zap.String("http_addr", cfg.HTTPAddr))
	cfg.Log(logger)

	// Подключаемся к PostgreSQL
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	// Проверяем подключение к PostgreSQL
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("PostgreSQL connection established")

	// Функция readiness для health check
	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx) == nil
	}

	// Создаём PostgreSQL репозиторий
	orderRepo := postgres.NewRepository(pool)

	// Механизм доставки событий: outbox (default) или direct
	stageOutbox := cfg.EventDelivery == config.DeliveryOutbox

	var publisher *eventkafka.OrderEventPublisher
	var servicePublisher service.EventPublisher
	if !stageOutbox {
		publisher = eventkafka.NewOrderEventPublisher(logger, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.PublishTimeout)
		servicePublisher = publisher
	}

	// Создаем service слой с зависимостями
	orderService := service.NewOrderService(logger, orderRepo, servicePublisher, cfg.Kafka.Topic, stageOutbox)

	// Consumer собственных доменных событий: наблюдаемая обработка + DLQ для poison сообщений
	dlqPublisher := eventkafka.NewDLQPublisher(logger, cfg.Kafka.Brokers, cfg.Kafka.DLQTopic)
	processor := service.NewOrderEventProcessor(logger)
	consumer := eventkafka.NewOrderEventConsumer(
		logger,
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		cfg.Kafka.Topic,
		processor,
		dlqPublisher,
		cfg.ConsumerMaxAttempts,
		cfg.ConsumerBackoffBase,
	)

	var dispatcher *eventkafka.OutboxDispatcher
	if stageOutbox {
		dispatcher = eventkafka.NewOutboxDispatcher(
			logger,
			orderRepo,
			cfg.Kafka.Brokers,
			cfg.OutboxBatchSize,
			cfg.OutboxInterval,
			cfg.OutboxMaxRetries,
			cfg.OutboxBackoff,
		)
	}

	// Создаем HTTP handler
	handler := httpapi.NewHandler(logger, orderService)

	// Настраиваем роутер
	router := httpapi.NewRouter(handler, readiness)

	// Создаём HTTP сервер
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Контекст фоновых горутин (consumer, dispatcher)
	workerCtx, workerCancel := context.WithCancel(context.Background())

	// Создаём shutdown manager
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	// Регистрируем shutdown функции в обратном порядке выполнения:
	// сначала HTTP сервер и фоновые горутины, затем Kafka, затем pool
	shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
	if publisher != nil {
		shutdownMgr.Add("kafka_publisher", platformshutdown.Close(publisher))
	}
	if dispatcher != nil {
		shutdownMgr.Add("outbox_dispatcher_writer", platformshutdown.Close(dispatcher))
	}
	shutdownMgr.Add("dlq_publisher", platformshutdown.Close(dlqPublisher))
	shutdownMgr.Add("kafka_consumer", platformshutdown.Close(consumer))
	shutdownMgr.Add("workers_cancel", platformshutdown.Cancel(workerCancel))
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		consumer:    consumer,
		dispatcher:  dispatcher,
		workerCtx:   workerCtx,
		shutdownMgr: shutdownMgr,
		readiness:   readiness,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Order Events service", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Start(a.workerCtx); err != nil && a.workerCtx.Err() == nil {
			a.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	if a.dispatcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.dispatcher.Start(a.workerCtx); err != nil && a.workerCtx.Err() == nil {
				a.logger.Error("Outbox dispatcher error", zap.Error(err))
			}
		}()
	}

	// Ожидаем сигнал и выполняем shutdown
	a.shutdownMgr.Wait()

	a.wg.Wait()
	a.logger.Info("Order Events service stopped")
	return nil
}
