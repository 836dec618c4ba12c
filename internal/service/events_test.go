package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hendisantika/order-events/internal/repository"
)

func testOrder(t *testing.T) repository.Order {
	t.Helper()
	order, err := repository.NewOrder("ORD-ABC123DEF456", "John Doe", "john@example.com", "Laptop", 2, decimal.RequireFromString("999.99"))
	require.NoError(t, err)
	order.ID = 42
	return order
}

func TestNewOrderEvent(t *testing.T) {
	order := testOrder(t)

	event := NewOrderEvent(order, EventOrderCreated)

	require.Equal(t, EventOrderCreated, event.EventType)
	require.Equal(t, int64(42), event.OrderID)
	require.Equal(t, "ORD-ABC123DEF456", event.OrderNumber)
	require.Equal(t, "john@example.com", event.CustomerEmail)
	require.Equal(t, 2, event.Quantity)
	require.True(t, event.UnitPrice.Equal(order.UnitPrice))
	require.True(t, event.TotalAmount.Equal(order.TotalAmount))
	require.Equal(t, "CREATED", event.Status)
	require.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
}

func TestOrderEvent_JSONContract(t *testing.T) {
	order := testOrder(t)

	payload, err := json.Marshal(NewOrderEvent(order, EventOrderShipped))
	require.NoError(t, err)

	// Имена полей - контракт с консьюмерами, decimal значения - точные строки
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))

	for _, field := range []string{
		"eventType", "orderId", "orderNumber", "customerName", "customerEmail",
		"productName", "quantity", "unitPrice", "totalAmount", "status", "timestamp",
	} {
		require.Contains(t, raw, field)
	}

	require.JSONEq(t, `"ORDER_SHIPPED"`, string(raw["eventType"]))
	require.JSONEq(t, `"999.99"`, string(raw["unitPrice"]))
	require.JSONEq(t, `"1999.98"`, string(raw["totalAmount"]))
}

func TestDecodeOrderEvent(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		event := NewOrderEvent(testOrder(t), EventOrderConfirmed)
		payload, err := json.Marshal(event)
		require.NoError(t, err)

		decoded, err := DecodeOrderEvent(payload)
		require.NoError(t, err)
		require.Equal(t, event.EventType, decoded.EventType)
		require.Equal(t, event.OrderNumber, decoded.OrderNumber)
		require.True(t, decoded.TotalAmount.Equal(event.TotalAmount))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeOrderEvent([]byte(`{not json`))
		require.Error(t, err)
	})

	t.Run("missing order number", func(t *testing.T) {
		_, err := DecodeOrderEvent([]byte(`{"eventType":"ORDER_CREATED"}`))
		require.Error(t, err)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		require.Equal(t, "orderNumber", decodeErr.Field)
	})
}

func TestOrderEventProcessor_HandleOrderEvent(t *testing.T) {
	ctx := context.Background()
	order := testOrder(t)

	tests := []struct {
		name      string
		eventType EventType
		wantMsg   string
	}{
		{name: "created", eventType: EventOrderCreated, wantMsg: "processing order creation"},
		{name: "confirmed", eventType: EventOrderConfirmed, wantMsg: "processing order confirmation"},
		{name: "shipped", eventType: EventOrderShipped, wantMsg: "processing order shipment"},
		{name: "delivered", eventType: EventOrderDelivered, wantMsg: "processing order delivery"},
		{name: "cancelled", eventType: EventOrderCancelled, wantMsg: "processing order cancellation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			processor := NewOrderEventProcessor(zap.New(core))

			err := processor.HandleOrderEvent(ctx, NewOrderEvent(order, tt.eventType))
			require.NoError(t, err)

			entries := logs.FilterMessage(tt.wantMsg).All()
			require.Len(t, entries, 1)
			require.Equal(t, zap.InfoLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			require.Equal(t, order.Number, fields["order_number"])
		})
	}

	t.Run("unknown event type is warned, not failed", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		processor := NewOrderEventProcessor(zap.New(core))

		err := processor.HandleOrderEvent(ctx, NewOrderEvent(order, EventType("ORDER_REFUNDED")))
		require.NoError(t, err)

		entries := logs.FilterMessage("unknown order event type").All()
		require.Len(t, entries, 1)
		require.Equal(t, zap.WarnLevel, entries[0].Level)
		require.Equal(t, "ORDER_REFUNDED", entries[0].ContextMap()["event_type"])
	})
}
