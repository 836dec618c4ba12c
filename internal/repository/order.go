package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет доменную модель заказа
// Это бизнес-сущность, не привязанная к HTTP или БД
// Инвариант: TotalAmount всегда равен Quantity * UnitPrice
type Order struct {
	// ID назначается хранилищем при первом сохранении
	ID int64
	// Number - уникальный человекочитаемый номер заказа, неизменяемый после создания
	Number        string
	CustomerName  string
	CustomerEmail string
	ProductName   string
	Quantity      int
	// UnitPrice и TotalAmount - точные decimal значения, без float-округлений
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrder создаёт заказ в статусе CREATED с вычисленным TotalAmount
// Валидирует входные данные, при ошибке возвращает *ValidationError
// ID и таймстемпы назначает хранилище при сохранении
func NewOrder(number, customerName, customerEmail, productName string, quantity int, unitPrice decimal.Decimal) (Order, error) {
	switch {
	case strings.TrimSpace(number) == "":
		return Order{}, &ValidationError{Field: "orderNumber", Reason: "must not be empty"}
	case strings.TrimSpace(customerName) == "":
		return Order{}, &ValidationError{Field: "customerName", Reason: "must not be empty"}
	case strings.TrimSpace(customerEmail) == "":
		return Order{}, &ValidationError{Field: "customerEmail", Reason: "must not be empty"}
	case strings.TrimSpace(productName) == "":
		return Order{}, &ValidationError{Field: "productName", Reason: "must not be empty"}
	case quantity <= 0:
		return Order{}, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be greater than 0, got %d", quantity)}
	case unitPrice.IsNegative():
		return Order{}, &ValidationError{Field: "unitPrice", Reason: fmt.Sprintf("must not be negative, got %s", unitPrice)}
	}

	return Order{
		Number:        number,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		ProductName:   productName,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:        StatusCreated,
	}, nil
}
