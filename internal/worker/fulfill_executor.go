package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// DefaultCarrierFailureRate — доля отправлений, которые служба доставки
// отклоняет с первого раза.
const DefaultCarrierFailureRate = 0.05

// Stage — этап выполнения заказа с диапазоном задержки.
type Stage struct {
	Name string
	Min  time.Duration
	Max  time.Duration
}

// FulfillmentStages — этапы по умолчанию.
var FulfillmentStages = []Stage{
	{Name: "pick", Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
	{Name: "pack", Min: 100 * time.Millisecond, Max: 400 * time.Millisecond},
	{Name: "ship", Min: 200 * time.Millisecond, Max: 800 * time.Millisecond},
}

// FulfillExecutor — executor для order.completed.
//
// Проходит этапы сборки, каждый этап — отдельный span simulate.<stage>.
// На этапе ship служба доставки может отказать с вероятностью failureRate,
// это временная ошибка и её повторяет Worker.
type FulfillExecutor struct {
	sim         *simulate.Simulator
	stages      []Stage
	failureRate float64
}

// NewFulfillExecutor создаёт executor с этапами по умолчанию.
func NewFulfillExecutor(sim *simulate.Simulator, failureRate float64) *FulfillExecutor {
	return &FulfillExecutor{
		sim:         sim,
		stages:      FulfillmentStages,
		failureRate: failureRate,
	}
}

// Execute проводит заказ через этапы. Поддерживает отмену через context.
func (e *FulfillExecutor) Execute(ctx context.Context, event mq.OrderEventPayload) error {
	if event.OrderID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidEvent)
	}

	logger := telemetry.FromContext(ctx)

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		if stage.Name == "ship" && e.failureRate > 0 && !e.sim.Approve(1-e.failureRate) {
			return fmt.Errorf("%w: order %s", ErrCarrierUnavailable, event.OrderID)
		}

		latency := e.sim.Process(ctx, stage.Name, stage.Min, stage.Max)
		logger.Debug("fulfillment stage done",
			"stage", stage.Name,
			"latency_ms", simulate.Milliseconds(latency),
		)
	}

	logger.Info("order fulfilled",
		"total", event.Total,
		"items_count", event.ItemsCount,
		"category", event.Category,
	)
	return nil
}

// DeclineExecutor — executor для order.failed: уведомляет покупателя
// об отклонённой оплате.
type DeclineExecutor struct{}

// Execute записывает уведомление в лог.
func (e *DeclineExecutor) Execute(ctx context.Context, event mq.OrderEventPayload) error {
	if event.OrderID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidEvent)
	}

	telemetry.FromContext(ctx).Info("payment declined notification sent",
		slog.String("customer_email", event.CustomerEmail),
		slog.String("payment_method", event.PaymentMethod),
	)
	return nil
}
