package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// Default configuration values.
const (
	defaultPrefetch = 5
)

// Результаты обработки для метрики событий.
const (
	ResultProcessed = "processed"
	ResultFailed    = "failed"
)

// Worker выполняет заказы по событиям из очереди orders.fulfillment.
//
// Worker — stateless компонент, который:
//   - Получает события заказов из RabbitMQ
//   - Продолжает trace, начатый в API при оформлении заказа
//   - Выбирает executor по routing key (order.completed, order.failed)
//   - Повторяет временные ошибки с exponential backoff
//
// Workers масштабируются горизонтально: несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	conn     *mq.Connection
	registry *Registry
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	retry    RetryPolicy
	prefetch int
	wait     func(ctx context.Context, d time.Duration) error

	// Consumer
	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Conn     *mq.Connection
	Registry *Registry
	Metrics  *telemetry.Metrics

	// Tracer (опционально; если nil — no-op)
	Tracer trace.Tracer

	// Retry (опционально; если MaxAttempts == 0 — DefaultRetryPolicy)
	Retry RetryPolicy

	// Prefetch (default: 5)
	Prefetch int

	// Wait — ожидание между повторами (опционально; для тестов)
	Wait func(ctx context.Context, d time.Duration) error

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("worker")
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	wait := cfg.Wait
	if wait == nil {
		wait = sleepContext
	}

	return &Worker{
		conn:     cfg.Conn,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		tracer:   tracer,
		retry:    retry,
		prefetch: prefetch,
		wait:     wait,
		logger:   logger,
	}
}

// Start запускает consumer очереди orders.fulfillment.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}
	if w.conn == nil {
		return fmt.Errorf("start worker: %w", mq.ErrNoChannel)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"queue", mq.QueueFulfillment,
		"prefetch", w.prefetch,
		"max_attempts", w.retry.MaxAttempts,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueFulfillment),
		Handler:  w.HandleEvent,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("order event consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущего события.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	if w.stopped {
		w.stoppedMu.Unlock()
		return
	}
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// HandleEvent обрабатывает одно событие заказа.
//
// Неразбираемые и неизвестные события помечаются mq.Permanent
// и уходят в DLQ без повторной доставки.
func (w *Worker) HandleEvent(ctx context.Context, delivery *mq.Delivery) error {
	key := delivery.RoutingKey()

	ctx, span := telemetry.StartSpan(ctx, w.tracer, "process-order-event",
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.destination.name", string(mq.QueueFulfillment)),
		attribute.String("messaging.rabbitmq.routing_key", string(key)),
	)
	defer span.End()

	event, err := delivery.OrderEvent()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		w.fail(span, key, err)
		return mq.Permanent(err)
	}

	logger := telemetry.WithTraceID(telemetry.WithOrderID(w.logger, event.OrderID), span.TraceID())
	ctx = telemetry.WithLogger(ctx, logger)

	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("order.status", string(event.Status)),
	)

	executor, err := w.registry.Get(key)
	if err != nil {
		w.fail(span, key, err)
		return mq.Permanent(err)
	}

	start := time.Now()
	attempts, err := w.executeWithRetry(ctx, executor, event)
	span.SetAttributes(attribute.Int("event.attempts", attempts))

	if err != nil {
		w.fail(span, key, err)
		if errors.Is(err, ErrInvalidEvent) {
			return mq.Permanent(err)
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.IncEventProcessed(string(key), ResultProcessed)
		if key == mq.RoutingKeyOrderCompleted {
			w.metrics.ObserveFulfillment(time.Since(start))
		}
	}

	logger.Debug("order event processed", "routing_key", key, "attempts", attempts)
	return nil
}

func (w *Worker) fail(span *telemetry.Span, key mq.RoutingKey, err error) {
	span.Fail(err)
	if w.metrics != nil {
		w.metrics.IncEventProcessed(string(key), ResultFailed)
	}
	w.logger.Warn("order event failed", "routing_key", key, "error", err)
}
