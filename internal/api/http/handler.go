package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hendisantika/order-events/internal/repository"
	"github.com/hendisantika/order-events/internal/service"
)

// Handler содержит HTTP-обработчики заказов
// Зависит от service слоя и не знает о деталях хранилища и Kafka
type Handler struct {
	logger       *zap.Logger
	orderService *service.OrderService
}

// NewHandler создаёт новый HTTP handler
func NewHandler(logger *zap.Logger, orderService *service.OrderService) *Handler {
	return &Handler{
		logger:       logger,
		orderService: orderService,
	}
}

// CreateOrderRequest представляет HTTP запрос на создание заказа
// unitPrice принимается и как JSON число, и как decimal-строка
type CreateOrderRequest struct {
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	ProductName   string          `json:"productName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

// OrderResponse представляет снапшот заказа в HTTP ответе
type OrderResponse struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	ProductName   string          `json:"productName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateOrder обрабатывает POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ProductName:   req.ProductName,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
	})
	if err != nil {
		var validation *repository.ValidationError
		if errors.As(err, &validation) {
			h.writeError(w, http.StatusBadRequest, validation.Error())
			return
		}
		h.logger.Error("failed to create order", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetAllOrders обрабатывает GET /api/orders
func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.GetAllOrders(r.Context())
	if err != nil {
		h.logger.Error("failed to get all orders", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetOrderByNumber обрабатывает GET /api/orders/{orderNumber}
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request, orderNumber string) {
	order, err := h.orderService.GetOrderByNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found: "+orderNumber)
			return
		}
		h.logger.Error("failed to get order", zap.Error(err), zap.String("order_number", orderNumber))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrdersByCustomer обрабатывает GET /api/orders/customer/{email}
func (h *Handler) GetOrdersByCustomer(w http.ResponseWriter, r *http.Request, email string) {
	orders, err := h.orderService.GetOrdersByCustomerEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to get orders by customer", zap.Error(err), zap.String("customer_email", email))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ConfirmOrder обрабатывает PUT /api/orders/{orderNumber}/confirm
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	h.transition(w, r, orderNumber, h.orderService.ConfirmOrder)
}

// ShipOrder обрабатывает PUT /api/orders/{orderNumber}/ship
func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	h.transition(w, r, orderNumber, h.orderService.ShipOrder)
}

// DeliverOrder обрабатывает PUT /api/orders/{orderNumber}/deliver
func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	h.transition(w, r, orderNumber, h.orderService.DeliverOrder)
}

// CancelOrder обрабатывает PUT /api/orders/{orderNumber}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	h.transition(w, r, orderNumber, h.orderService.CancelOrder)
}

// transition - общий обработчик PUT операций перехода статуса
// NotFound и невалидный переход отдаются как 400 с различимым текстом,
// чтобы клиент мог отличить "не существует" от "не тот статус"
func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	orderNumber string,
	op func(context.Context, string) (repository.Order, error),
) {
	order, err := op(r.Context(), orderNumber)
	if err != nil {
		var invalid *repository.InvalidTransitionError
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.writeError(w, http.StatusBadRequest, "order not found: "+orderNumber)
		case errors.As(err, &invalid):
			h.writeError(w, http.StatusBadRequest, invalid.Error())
		default:
			h.logger.Error("failed to update order",
				zap.Error(err),
				zap.String("order_number", orderNumber),
			)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func toOrderResponse(order repository.Order) OrderResponse {
	return OrderResponse{
		ID:            order.ID,
		OrderNumber:   order.Number,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		ProductName:   order.ProductName,
		Quantity:      order.Quantity,
		UnitPrice:     order.UnitPrice,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func toOrderResponses(orders []repository.Order) []OrderResponse {
	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order))
	}
	return responses
}
