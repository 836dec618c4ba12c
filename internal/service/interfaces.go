package service

import "context"

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventPublisher --dir=. --output=./mocks --outpkg=mocks

// EventPublisher определяет интерфейс синхронной публикации доменных событий
// Используется в режиме direct; в режиме outbox события уходят через
// outbox таблицу и dispatcher, минуя этот интерфейс
type EventPublisher interface {
	// PublishOrderEvent публикует событие в шину
	// Возвращает ошибку при недоступности брокера или ошибке сериализации
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
