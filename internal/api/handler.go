package api

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// DefaultPaymentSuccessRate — доля успешных оплат.
const DefaultPaymentSuccessRate = 0.9

// ProductsPerPage — число товаров в ответе /products.
const ProductsPerPage = 20

// OrderPublisher публикует события заказов.
// Ошибка публикации не влияет на ответ клиенту.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, order *domain.Order) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer
	sim       *simulate.Simulator
	catalog   *simulate.Catalog
	tracer    trace.Tracer
	publisher OrderPublisher
	logger    *slog.Logger

	declinedStatus int
	paymentRate    float64

	now       func() time.Time
	startTime time.Time
	version   string
}

// Config — конфигурация для создания Handler.
type Config struct {
	Metrics   *telemetry.Metrics
	Simulator *simulate.Simulator
	Catalog   *simulate.Catalog
	Logger    *slog.Logger

	// Gatherer для /metrics (опционально; если nil — реестр Metrics)
	Gatherer prometheus.Gatherer

	// Tracer (опционально; если nil — no-op)
	Tracer trace.Tracer

	// Publisher (опционально; если nil — события не публикуются)
	Publisher OrderPublisher

	// DeclinedStatus — код ответа для отклонённой оплаты (0 — 400)
	DeclinedStatus int

	// PaymentSuccessRate — вероятность успешной оплаты (0 — 0.9)
	PaymentSuccessRate float64

	// Clock (опционально; если nil — time.Now)
	Clock func() time.Time

	// StartTime — время старта процесса для uptime
	StartTime time.Time

	// Version для /health (если пусто — версия Go runtime)
	Version string
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		metrics:        cfg.Metrics,
		gatherer:       cfg.Gatherer,
		sim:            cfg.Simulator,
		catalog:        cfg.Catalog,
		tracer:         cfg.Tracer,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
		declinedStatus: cfg.DeclinedStatus,
		paymentRate:    cfg.PaymentSuccessRate,
		now:            cfg.Clock,
		startTime:      cfg.StartTime,
		version:        cfg.Version,
	}

	if h.gatherer == nil && h.metrics != nil {
		h.gatherer = h.metrics.Registry()
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("api")
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.paymentRate == 0 {
		h.paymentRate = DefaultPaymentSuccessRate
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.startTime.IsZero() {
		h.startTime = h.now()
	}
	if h.version == "" {
		h.version = runtime.Version()
	}
	if h.sim == nil {
		h.sim = simulate.New(simulate.Config{Metrics: h.metrics, Tracer: h.tracer})
	}
	if h.catalog == nil {
		h.catalog = simulate.NewCatalog(0)
	}

	return h
}
