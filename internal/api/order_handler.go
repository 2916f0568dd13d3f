package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// Диапазон симулированной обработки оплаты.
const (
	paymentMinLatency = 200 * time.Millisecond
	paymentMaxLatency = 1200 * time.Millisecond
)

// maxOrderBodySize — предел размера тела POST /orders.
const maxOrderBodySize = 1 << 20

// CreateOrder создаёт заказ.
// POST /orders
//
// Нет позиций → 400 без метрик. Битое тело или позиция → 500.
// Иначе 201 для completed и declinedStatus для failed.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartSpan(r.Context(), h.tracer, "create-order",
		attribute.String("order.operation", "create"),
		attribute.String("user.agent", r.UserAgent()),
	)
	defer span.End()

	logger := telemetry.WithTraceID(h.logger, span.TraceID())

	items, paymentMethod, err := decodeOrderRequest(http.MaxBytesReader(w, r.Body, maxOrderBodySize))
	if errors.Is(err, domain.ErrNoItems) {
		span.SetAttributes(
			attribute.String("order.status", "error"),
			attribute.String("error.type", "validation"),
		)
		BadRequest(w, MsgItemsRequired)
		return
	}
	if err != nil {
		h.failOrder(ctx, w, span, err)
		return
	}

	// Позиции проверяются до задержки, чтобы не ждать заведомо битый заказ
	if _, err := domain.OrderTotal(items); err != nil {
		h.failOrder(ctx, w, span, err)
		return
	}

	processing := h.sim.Process(ctx, "payment", paymentMinLatency, paymentMaxLatency)
	status := domain.StatusFromPayment(h.sim.Approve(h.paymentRate))

	order, err := domain.NewOrder(domain.OrderParams{
		ID:             uuid.NewString(),
		Items:          items,
		PaymentMethod:  paymentMethod,
		Status:         status,
		Customer:       h.catalog.Customer(),
		Timestamp:      h.now().UTC(),
		ProcessingTime: processing,
	})
	if err != nil {
		h.failOrder(ctx, w, span, err)
		return
	}

	h.metrics.IncOrder(string(order.Status), order.PaymentMethod)
	h.metrics.ObserveOrderValue(order.PrimaryCategory(), order.RawTotal)

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Float64("order.total", order.RawTotal),
		attribute.String("order.status", string(order.Status)),
		attribute.Float64("order.processing_time_ms", simulate.Milliseconds(processing)),
		attribute.Int("order.items_count", len(order.Items)),
	)

	logger = telemetry.WithOrderID(logger, order.ID)
	logger.InfoContext(ctx, "order settled",
		"status", order.Status,
		"total", order.Total,
		"payment_method", order.PaymentMethod,
		"items", len(order.Items),
	)

	if h.publisher != nil {
		if err := h.publisher.PublishOrder(ctx, order); err != nil {
			logger.WarnContext(ctx, "failed to publish order event", "error", err)
		}
	}

	JSON(w, order.Status.HTTPStatus(h.declinedStatus), OrderFromDomain(order))
}

// failOrder помечает span и отвечает 500.
func (h *Handler) failOrder(ctx context.Context, w http.ResponseWriter, span *telemetry.Span, err error) {
	span.Fail(err)
	span.SetAttributes(attribute.String("order.status", "error"))

	logger := telemetry.WithTraceID(h.logger, span.TraceID())
	logger.ErrorContext(ctx, "create order failed", "error", err)

	Error(w, http.StatusInternalServerError, MsgInternalError)
}

// decodeOrderRequest читает тело запроса.
// Возвращает domain.ErrNoItems, если позиций нет.
func decodeOrderRequest(body io.Reader) ([]domain.LineItem, string, error) {
	var req CreateOrderRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, "", domain.ErrNoItems
		}
		return nil, "", fmt.Errorf("decode order request: %w", err)
	}

	raw := bytes.TrimSpace(req.Items)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, "", domain.ErrNoItems
	}

	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, "", fmt.Errorf("decode order items: %w", err)
	}
	if len(items) == 0 {
		return nil, "", domain.ErrNoItems
	}

	return items, req.PaymentMethod, nil
}
