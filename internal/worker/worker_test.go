package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// seqRand возвращает значения по очереди, последнее повторяется.
type seqRand struct {
	mu     sync.Mutex
	values []float64
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.values[0]
	if len(r.values) > 1 {
		r.values = r.values[1:]
	}
	return v
}

func (r *seqRand) IntN(n int) int { return 0 }

type testEnv struct {
	worker   *Worker
	metrics  *telemetry.Metrics
	recorder *tracetest.SpanRecorder
	tracer   *sdktrace.TracerProvider
	waits    *[]time.Duration
}

func newTestEnv(t *testing.T, draws ...float64) *testEnv {
	t.Helper()

	metrics := telemetry.NewMetrics()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	sim := simulate.New(simulate.Config{
		Metrics: metrics,
		Tracer:  tp.Tracer("test"),
		Rand:    &seqRand{values: draws},
		Sleep:   func(time.Duration) {},
	})

	var waits []time.Duration
	w := New(Config{
		Registry: NewRegistry(sim, DefaultCarrierFailureRate),
		Metrics:  metrics,
		Tracer:   tp.Tracer("test"),
		Logger:   slog.New(slog.DiscardHandler),
		Wait: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return ctx.Err()
		},
	})

	return &testEnv{worker: w, metrics: metrics, recorder: recorder, tracer: tp, waits: &waits}
}

func delivery(key mq.RoutingKey, payload any) *mq.Delivery {
	return &mq.Delivery{
		Message: mq.Message{ID: "msg-1", Payload: payload},
		Raw:     amqp.Delivery{RoutingKey: string(key)},
	}
}

func testEvent(status domain.OrderStatus) mq.OrderEventPayload {
	return mq.OrderEventPayload{
		OrderID:       "order-1",
		Status:        status,
		Total:         59.98,
		PaymentMethod: "credit_card",
		Category:      "electronics",
		ItemsCount:    1,
		CustomerEmail: "jane@example.com",
	}
}

func processed(t *testing.T, m *telemetry.Metrics, key mq.RoutingKey, result string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != telemetry.MetricEventsProcessed {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["event"] == string(key) && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func (e *testEnv) spanNames() map[string]int {
	names := map[string]int{}
	for _, s := range e.recorder.Ended() {
		names[s.Name()]++
	}
	return names
}

// --- HandleEvent Tests ---

func TestHandleEvent_Fulfill(t *testing.T) {
	env := newTestEnv(t, 0.5)

	err := env.worker.HandleEvent(context.Background(), delivery(mq.RoutingKeyOrderCompleted, testEvent(domain.OrderStatusCompleted)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := env.spanNames()
	for _, name := range []string{"process-order-event", "simulate.pick", "simulate.pack", "simulate.ship"} {
		if names[name] != 1 {
			t.Errorf("expected span %s once, got %d", name, names[name])
		}
	}

	if got := processed(t, env.metrics, mq.RoutingKeyOrderCompleted, ResultProcessed); got != 1 {
		t.Errorf("expected 1 processed event, got %v", got)
	}
	count, err := testutil.GatherAndCount(env.metrics.Registry(), telemetry.MetricFulfillment)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Errorf("expected fulfillment histogram, got %d series", count)
	}
}

func TestHandleEvent_ContinuesTrace(t *testing.T) {
	env := newTestEnv(t, 0.5)

	ctx, parent := env.tracer.Tracer("api").Start(context.Background(), "create-order")
	err := env.worker.HandleEvent(ctx, delivery(mq.RoutingKeyOrderFailed, testEvent(domain.OrderStatusFailed)))
	parent.End()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range env.recorder.Ended() {
		if s.Name() != "process-order-event" {
			continue
		}
		if s.Parent().SpanID() != parent.SpanContext().SpanID() {
			t.Error("event span must be a child of the publishing span")
		}
		if s.SpanContext().TraceID() != parent.SpanContext().TraceID() {
			t.Error("event span must share the trace id")
		}
		return
	}
	t.Fatal("process-order-event span not recorded")
}

func TestHandleEvent_Decline(t *testing.T) {
	env := newTestEnv(t, 0.5)

	err := env.worker.HandleEvent(context.Background(), delivery(mq.RoutingKeyOrderFailed, testEvent(domain.OrderStatusFailed)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names := env.spanNames(); names["simulate.pick"] != 0 {
		t.Error("declined orders must not be fulfilled")
	}
	if got := processed(t, env.metrics, mq.RoutingKeyOrderFailed, ResultProcessed); got != 1 {
		t.Errorf("expected 1 processed event, got %v", got)
	}
}

func TestHandleEvent_RetriesCarrierFailure(t *testing.T) {
	// pick, pack, отказ на ship; затем успешная попытка
	env := newTestEnv(t, 0.5, 0.5, 0.01, 0.5)

	err := env.worker.HandleEvent(context.Background(), delivery(mq.RoutingKeyOrderCompleted, testEvent(domain.OrderStatusCompleted)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*env.waits) != 1 || (*env.waits)[0] != DefaultRetryPolicy.InitialDelay {
		t.Errorf("expected one backoff of %v, got %v", DefaultRetryPolicy.InitialDelay, *env.waits)
	}
	if names := env.spanNames(); names["simulate.pick"] != 2 || names["simulate.ship"] != 1 {
		t.Errorf("unexpected spans %v", names)
	}
}

func TestHandleEvent_RetryExhausted(t *testing.T) {
	env := newTestEnv(t, 0.01)

	err := env.worker.HandleEvent(context.Background(), delivery(mq.RoutingKeyOrderCompleted, testEvent(domain.OrderStatusCompleted)))
	if !errors.Is(err, ErrRetryExhausted) || !errors.Is(err, ErrCarrierUnavailable) {
		t.Fatalf("expected exhausted carrier error, got %v", err)
	}
	if errors.Is(err, mq.ErrPermanent) {
		t.Error("transient failures must stay redeliverable")
	}
	if len(*env.waits) != DefaultRetryPolicy.MaxAttempts-1 {
		t.Errorf("expected %d backoffs, got %d", DefaultRetryPolicy.MaxAttempts-1, len(*env.waits))
	}
	if got := processed(t, env.metrics, mq.RoutingKeyOrderCompleted, ResultFailed); got != 1 {
		t.Errorf("expected 1 failed event, got %v", got)
	}

	for _, s := range env.recorder.Ended() {
		if s.Name() == "process-order-event" && s.Status().Code != codes.Error {
			t.Error("expected error status on event span")
		}
	}
}

func TestHandleEvent_Permanent(t *testing.T) {
	tests := []struct {
		name     string
		delivery *mq.Delivery
		want     error
	}{
		{"invalid payload", delivery(mq.RoutingKeyOrderCompleted, "not an event"), ErrInvalidEvent},
		{"missing order id", delivery(mq.RoutingKeyOrderCompleted, mq.OrderEventPayload{}), ErrInvalidEvent},
		{"unknown routing key", delivery("order.refunded", testEvent(domain.OrderStatusCompleted)), ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 0.5)

			err := env.worker.HandleEvent(context.Background(), tt.delivery)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, mq.ErrPermanent) {
				t.Error("expected permanent error")
			}
			if len(*env.waits) != 0 {
				t.Error("permanent errors must not be retried")
			}
		})
	}
}

// --- Retry Tests ---

func TestCalculateBackoff(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Backoff: "exponential"}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, policy); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}

	fixed := RetryPolicy{InitialDelay: 300 * time.Millisecond, Backoff: "fixed"}
	if got := calculateBackoff(3, fixed); got != 300*time.Millisecond {
		t.Errorf("fixed: expected 300ms, got %v", got)
	}
	if got := calculateBackoff(1, RetryPolicy{}); got != time.Second {
		t.Errorf("zero policy: expected 1s, got %v", got)
	}
}

func TestSleepContext_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Lifecycle Tests ---

func TestWorker_StartWithoutConnection(t *testing.T) {
	w := New(Config{Logger: slog.New(slog.DiscardHandler)})

	if err := w.Start(context.Background()); !errors.Is(err, mq.ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}

	w.Stop()
	w.Stop()
	if !w.IsStopped() {
		t.Error("expected stopped worker")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(simulate.New(simulate.Config{Sleep: func(time.Duration) {}}), 0)

	if _, err := r.Get(mq.RoutingKeyOrderCompleted); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Get("order.unknown"); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}
