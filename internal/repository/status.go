package repository

import "fmt"

// Status представляет состояние заказа в жизненном цикле
// Переходы между статусами валидируются методами Confirm/Ship/Deliver/Cancel,
// невалидный переход возвращает *InvalidTransitionError без изменения состояния
type Status string

const (
	// StatusCreated - начальный статус, устанавливается только при создании заказа
	StatusCreated Status = "CREATED"
	// StatusConfirmed - заказ подтверждён
	StatusConfirmed Status = "CONFIRMED"
	// StatusProcessing - зарезервирован для будущего workflow обработки:
	// ни одна операция сервиса не переводит заказ в этот статус,
	// но хранилище его принимает и cancel из него разрешён
	StatusProcessing Status = "PROCESSING"
	// StatusShipped - заказ отправлен
	StatusShipped Status = "SHIPPED"
	// StatusDelivered - заказ доставлен (терминальный статус)
	StatusDelivered Status = "DELIVERED"
	// StatusCancelled - заказ отменён (терминальный статус)
	StatusCancelled Status = "CANCELLED"
)

// validStatuses - все допустимые значения статуса
var validStatuses = map[Status]struct{}{
	StatusCreated:    {},
	StatusConfirmed:  {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseStatus преобразует строку из внешнего источника (БД, API) в Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; !ok {
		return "", fmt.Errorf("invalid order status: %q", s)
	}
	return status, nil
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal возвращает true для статусов, из которых нет переходов
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Confirm выполняет переход CREATED -> CONFIRMED
func (s Status) Confirm() (Status, error) {
	if s != StatusCreated {
		return "", &InvalidTransitionError{
			Action:   "confirm",
			From:     s,
			Required: []Status{StatusCreated},
		}
	}
	return StatusConfirmed, nil
}

// Ship выполняет переход CONFIRMED -> SHIPPED
func (s Status) Ship() (Status, error) {
	if s != StatusConfirmed {
		return "", &InvalidTransitionError{
			Action:   "ship",
			From:     s,
			Required: []Status{StatusConfirmed},
		}
	}
	return StatusShipped, nil
}

// Deliver выполняет переход SHIPPED -> DELIVERED
func (s Status) Deliver() (Status, error) {
	if s != StatusShipped {
		return "", &InvalidTransitionError{
			Action:   "deliver",
			From:     s,
			Required: []Status{StatusShipped},
		}
	}
	return StatusDelivered, nil
}

// Cancel выполняет переход в CANCELLED из любого нетерминального статуса
// Повторный cancel уже отменённого заказа отклоняется: иначе пришлось бы
// молча переэмитить ORDER_CANCELLED
func (s Status) Cancel() (Status, error) {
	if s.IsTerminal() {
		return "", &InvalidTransitionError{
			Action:   "cancel",
			From:     s,
			Required: []Status{StatusCreated, StatusConfirmed, StatusProcessing, StatusShipped},
		}
	}
	return StatusCancelled, nil
}
