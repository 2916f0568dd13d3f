package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// fixedRand всегда возвращает одно и то же значение.
type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }
func (r fixedRand) IntN(n int) int   { return n / 2 }

type testEnv struct {
	handler  *Handler
	metrics  *telemetry.Metrics
	recorder *tracetest.SpanRecorder
	sleeps   *[]time.Duration
}

func newTestEnv(t *testing.T, draw float64, mutate ...func(*Config)) *testEnv {
	t.Helper()

	metrics := telemetry.NewMetrics()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	var sleeps []time.Duration
	sim := simulate.New(simulate.Config{
		Metrics: metrics,
		Tracer:  tracer,
		Rand:    fixedRand(draw),
		Sleep:   func(d time.Duration) { sleeps = append(sleeps, d) },
	})

	cfg := Config{
		Metrics:   metrics,
		Simulator: sim,
		Catalog:   simulate.NewCatalog(42),
		Tracer:    tracer,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	return &testEnv{
		handler:  NewHandler(cfg),
		metrics:  metrics,
		recorder: recorder,
		sleeps:   &sleeps,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "storefront-test")

	w := httptest.NewRecorder()
	e.handler.Routes().ServeHTTP(w, req)
	return w
}

// endedOnce проверяет, что span name закрыт ровно один раз.
func (e *testEnv) endedOnce(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	var found []sdktrace.ReadOnlySpan
	for _, s := range e.recorder.Ended() {
		if s.Name() == name {
			found = append(found, s)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected span %q ended once, got %d", name, len(found))
	}
	return found[0]
}

func (e *testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := e.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// histogram возвращает число наблюдений и их сумму для серии с метками labels.
func (e *testEnv) histogram(t *testing.T, name string, labels map[string]string) (uint64, float64) {
	t.Helper()

	families, err := e.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			h := m.GetHistogram()
			return h.GetSampleCount(), h.GetSampleSum()
		}
	}
	return 0, 0
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

// --- Page Tests ---

func TestHome(t *testing.T) {
	env := newTestEnv(t, 0.5)

	w := env.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HomeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != WelcomeMessage {
		t.Errorf("unexpected message %q", resp.Message)
	}
	// 200ms + 0.5 × 1300ms
	if resp.LoadTime != "850.00ms" {
		t.Errorf("expected 850.00ms, got %s", resp.LoadTime)
	}

	span := env.endedOnce(t, "homepage-load")
	if v, _ := spanAttr(span, "page.status"); v.AsString() != "success" {
		t.Errorf("expected page.status=success, got %q", v.AsString())
	}
	child := env.endedOnce(t, "simulate.homepage")
	if child.Parent().SpanID() != span.SpanContext().SpanID() {
		t.Error("simulate span must be a child of homepage-load")
	}

	if got := env.counter(t, telemetry.MetricPageLoads, map[string]string{"page_type": "homepage", "status": "success"}); got != 1 {
		t.Errorf("expected 1 homepage load, got %v", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t, 0.25)

	w := env.do(http.MethodGet, "/products", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ProductsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != ProductsPerPage {
		t.Fatalf("expected %d products, got %d", ProductsPerPage, len(resp.Products))
	}
	for i, p := range resp.Products {
		if p.ID == "" {
			t.Errorf("product %d: empty id", i)
		}
		if p.Price < 0 {
			t.Errorf("product %d: negative price %v", i, p.Price)
		}
	}

	span := env.endedOnce(t, "products-page-load")
	if v, _ := spanAttr(span, "products.count"); v.AsInt64() != ProductsPerPage {
		t.Errorf("expected products.count=%d, got %d", ProductsPerPage, v.AsInt64())
	}
	if got := env.counter(t, telemetry.MetricPageLoads, map[string]string{"page_type": "products", "status": "success"}); got != 1 {
		t.Errorf("expected 1 products load, got %v", got)
	}
}

// --- Order Tests ---

func TestCreateOrder_Completed(t *testing.T) {
	env := newTestEnv(t, 0.5)

	body := `{"items":[{"id":"p1","price":29.99,"quantity":2,"category":"electronics"},{"id":"p2","price":5.5,"quantity":3}]}`
	w := env.do(http.MethodPost, "/orders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp OrderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	prices := []float64{29.99, 5.5}
	quantities := []float64{2, 3}
	var raw float64
	for i := range prices {
		raw += prices[i] * quantities[i]
	}
	if resp.Total != domain.RoundCents(raw) {
		t.Errorf("expected total %v, got %v", domain.RoundCents(raw), resp.Total)
	}
	if resp.Status != domain.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", resp.Status)
	}
	if resp.PaymentMethod != domain.PaymentMethodDefault {
		t.Errorf("expected credit_card, got %s", resp.PaymentMethod)
	}
	if resp.ID == "" || resp.Customer.Name == "" || resp.Customer.Email == "" {
		t.Errorf("expected generated id and customer, got %+v", resp)
	}
	// 200ms + 0.5 × 1000ms
	if resp.ProcessingTime != "700.00ms" {
		t.Errorf("expected 700.00ms, got %s", resp.ProcessingTime)
	}

	if got := env.counter(t, telemetry.MetricOrders, map[string]string{"status": "completed", "payment_method": "credit_card"}); got != 1 {
		t.Errorf("expected 1 completed order, got %v", got)
	}
	count, err := testutil.GatherAndCount(env.metrics.Registry(), telemetry.MetricOrderValue)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 order value series, got %d", count)
	}
	// Гистограмма получает неокруглённую сумму с категорией первой позиции
	samples, sum := env.histogram(t, telemetry.MetricOrderValue, map[string]string{"category": "electronics"})
	if samples != 1 {
		t.Errorf("expected 1 electronics observation, got %d", samples)
	}
	if sum != raw {
		t.Errorf("expected observed sum %v, got %v", raw, sum)
	}

	span := env.endedOnce(t, "create-order")
	if v, _ := spanAttr(span, "order.id"); v.AsString() != resp.ID {
		t.Errorf("expected order.id=%s, got %s", resp.ID, v.AsString())
	}
	if v, _ := spanAttr(span, "order.items_count"); v.AsInt64() != 2 {
		t.Errorf("expected 2 items, got %d", v.AsInt64())
	}
	env.endedOnce(t, "simulate.payment")
}

func TestCreateOrder_UnknownCategory(t *testing.T) {
	env := newTestEnv(t, 0.5)

	body := `{"items":[{"price":10.005,"quantity":1},{"price":1,"quantity":1,"category":"books"}]}`
	w := env.do(http.MethodPost, "/orders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	samples, sum := env.histogram(t, telemetry.MetricOrderValue, map[string]string{"category": domain.CategoryUnknown})
	if samples != 1 {
		t.Errorf("expected 1 unknown observation, got %d", samples)
	}
	price := 10.005
	if raw := price + 1; sum != raw {
		t.Errorf("expected observed sum %v, got %v", raw, sum)
	}
	if samples, _ := env.histogram(t, telemetry.MetricOrderValue, map[string]string{"category": "books"}); samples != 0 {
		t.Errorf("expected no books observation, got %d", samples)
	}
}

func TestCreateOrder_Declined(t *testing.T) {
	tests := []struct {
		name     string
		declined int
		want     int
	}{
		{"default status", 0, http.StatusBadRequest},
		{"payment required", http.StatusPaymentRequired, http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 0.05, func(c *Config) { c.DeclinedStatus = tt.declined })

			w := env.do(http.MethodPost, "/orders", `{"items":[{"price":10,"quantity":1,"category":"books"}],"paymentMethod":"paypal"}`)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}

			var resp OrderResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != domain.OrderStatusFailed {
				t.Errorf("expected failed, got %s", resp.Status)
			}
			if got := env.counter(t, telemetry.MetricOrders, map[string]string{"status": "failed", "payment_method": "paypal"}); got != 1 {
				t.Errorf("expected 1 failed order, got %v", got)
			}

			span := env.endedOnce(t, "create-order")
			if span.Status().Code == codes.Error {
				t.Error("declined payment must not mark the span as errored")
			}
		})
	}
}

func TestCreateOrder_ItemsRequired(t *testing.T) {
	bodies := map[string]string{
		"empty body":  "",
		"no items":    `{}`,
		"empty items": `{"items":[]}`,
		"null items":  `{"items":null}`,
		"not array":   `{"items":"abc"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, 0.5)

			w := env.do(http.MethodPost, "/orders", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if msg := decodeError(t, w); msg != MsgItemsRequired {
				t.Errorf("expected %q, got %q", MsgItemsRequired, msg)
			}

			count, err := testutil.GatherAndCount(env.metrics.Registry(), telemetry.MetricOrders)
			if err != nil {
				t.Fatalf("gather: %v", err)
			}
			if count != 0 {
				t.Errorf("expected no order series, got %d", count)
			}
			if len(*env.sleeps) != 0 {
				t.Errorf("rejected order must not be processed, got %d sleeps", len(*env.sleeps))
			}

			span := env.endedOnce(t, "create-order")
			if v, _ := spanAttr(span, "error.type"); v.AsString() != "validation" {
				t.Errorf("expected error.type=validation, got %q", v.AsString())
			}
		})
	}
}

func TestCreateOrder_Malformed(t *testing.T) {
	bodies := map[string]string{
		"not json":       `{"items":`,
		"negative price": `{"items":[{"price":-1,"quantity":1}]}`,
		"zero quantity":  `{"items":[{"price":10,"quantity":0}]}`,
		"price type":     `{"items":[{"price":"abc","quantity":1}]}`,
		"huge total":     `{"items":[{"price":1e307,"quantity":1}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, 0.5)

			w := env.do(http.MethodPost, "/orders", body)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", w.Code)
			}
			if msg := decodeError(t, w); msg != MsgInternalError {
				t.Errorf("expected %q, got %q", MsgInternalError, msg)
			}

			span := env.endedOnce(t, "create-order")
			if span.Status().Code != codes.Error {
				t.Errorf("expected error status, got %v", span.Status().Code)
			}
			if n, _ := testutil.GatherAndCount(env.metrics.Registry(), telemetry.MetricOrders, telemetry.MetricOrderValue); n != 0 {
				t.Errorf("expected no order metrics, got %d series", n)
			}
		})
	}
}

// --- Publisher Tests ---

type fakePublisher struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (p *fakePublisher) PublishOrder(_ context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order)
	return p.err
}

func TestCreateOrder_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	env := newTestEnv(t, 0.5, func(c *Config) { c.Publisher = pub })

	w := env.do(http.MethodPost, "/orders", `{"items":[{"price":10,"quantity":1}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if len(pub.orders) != 1 {
		t.Fatalf("expected 1 published order, got %d", len(pub.orders))
	}
	if pub.orders[0].Status != domain.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", pub.orders[0].Status)
	}
}

func TestCreateOrder_PublishFailureIgnored(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	env := newTestEnv(t, 0.5, func(c *Config) { c.Publisher = pub })

	w := env.do(http.MethodPost, "/orders", `{"items":[{"price":10,"quantity":1}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

// --- System Tests ---

func TestMetrics_AfterTraffic(t *testing.T) {
	env := newTestEnv(t, 0.5)

	env.do(http.MethodGet, "/", "")
	env.do(http.MethodPost, "/orders", `{"items":[{"price":10,"quantity":1}]}`)

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}

	body := w.Body.String()
	for _, name := range []string{telemetry.MetricOrders, telemetry.MetricPageLoads} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

type failingCollector struct {
	desc *prometheus.Desc
}

func (c failingCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }
func (c failingCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(c.desc, errors.New("boom"))
}

func TestMetrics_GatherError(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(failingCollector{desc: prometheus.NewDesc("broken_metric", "broken", nil, nil)})

	env := newTestEnv(t, 0.5, func(c *Config) { c.Gatherer = registry })

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != MsgInternalError {
		t.Errorf("expected %q, got %q", MsgInternalError, msg)
	}
}

func TestHealth(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)

	env := newTestEnv(t, 0.5, func(c *Config) {
		c.StartTime = start
		c.Clock = func() time.Time { return now }
		c.Version = "1.0.0"
	})

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != HealthStatus {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.Uptime != 90 {
		t.Errorf("expected uptime 90, got %v", resp.Uptime)
	}
	if resp.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", resp.Version)
	}
	if resp.Memory.Sys == 0 {
		t.Error("expected non-zero memory stats")
	}
}

func TestHealth_ClockSkew(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	env := newTestEnv(t, 0.5, func(c *Config) {
		c.StartTime = start
		c.Clock = func() time.Time { return start.Add(-time.Minute) }
	})

	w := env.do(http.MethodGet, "/health", "")

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Uptime < 0 {
		t.Errorf("uptime must not be negative, got %v", resp.Uptime)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, 0.5)

	if w := env.do(http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
