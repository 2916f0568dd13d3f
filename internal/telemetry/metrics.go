package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Имена метрик, на которые завязаны дашборды.
const (
	MetricPageLoads        = "ecommerce_page_loads_total"
	MetricPageLoadDuration = "ecommerce_page_load_duration_seconds"
	MetricOrders           = "ecommerce_orders_total"
	MetricOrderValue       = "ecommerce_order_value_dollars"
	MetricActiveUsers      = "ecommerce_active_users"
	MetricInventoryLevel   = "ecommerce_inventory_level"
	MetricOrderEvents      = "ecommerce_order_events_published_total"
	MetricEventsProcessed  = "ecommerce_order_events_processed_total"
	MetricFulfillment      = "ecommerce_fulfillment_duration_seconds"
)

// Metrics — реестр метрик магазина.
//
// Создаётся один раз при старте и передаётся в обработчики.
// Все операции безопасны для конкурентного вызова.
type Metrics struct {
	registry *prometheus.Registry

	pageLoads        *prometheus.CounterVec
	pageLoadDuration *prometheus.HistogramVec
	orders           *prometheus.CounterVec
	orderValue       *prometheus.HistogramVec
	activeUsers      prometheus.Gauge
	inventoryLevel   *prometheus.GaugeVec
	orderEvents      *prometheus.CounterVec
	eventsProcessed  *prometheus.CounterVec
	fulfillment      prometheus.Histogram
}

// NewMetrics создаёт реестр с метриками магазина и стандартными
// коллекторами Go runtime и процесса.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		pageLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPageLoads,
			Help: "Total number of page loads",
		}, []string{"page_type", "status"}),
		pageLoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricPageLoadDuration,
			Help:    "Duration of page loads in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}, []string{"page_type"}),
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricOrders,
			Help: "Total number of orders placed",
		}, []string{"status", "payment_method"}),
		orderValue: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricOrderValue,
			Help:    "Value of orders in dollars",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
		}, []string{"category"}),
		activeUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveUsers,
			Help: "Number of active users",
		}),
		inventoryLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricInventoryLevel,
			Help: "Current inventory level",
		}, []string{"product_category"}),
		orderEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricOrderEvents,
			Help: "Order events handed to the message broker",
		}, []string{"result"}),
		eventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventsProcessed,
			Help: "Order events processed by the fulfillment worker",
		}, []string{"event", "result"}),
		fulfillment: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFulfillment,
			Help:    "Duration of order fulfillment in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10},
		}),
	}
}

// Registry возвращает реестр для экспозиции и тестов.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PageLoadTimer запускает таймер загрузки страницы.
// ObserveDuration записывает длительность в секундах.
func (m *Metrics) PageLoadTimer(pageType string) *prometheus.Timer {
	return prometheus.NewTimer(m.pageLoadDuration.WithLabelValues(pageType))
}

// IncPageLoad увеличивает счётчик загрузок страницы.
func (m *Metrics) IncPageLoad(pageType, status string) {
	m.pageLoads.WithLabelValues(pageType, status).Inc()
}

// IncOrder увеличивает счётчик заказов.
func (m *Metrics) IncOrder(status, paymentMethod string) {
	m.orders.WithLabelValues(status, paymentMethod).Inc()
}

// ObserveOrderValue записывает сумму заказа в гистограмму.
func (m *Metrics) ObserveOrderValue(category string, value float64) {
	m.orderValue.WithLabelValues(category).Observe(value)
}

// SetActiveUsers заменяет значение числа активных пользователей.
func (m *Metrics) SetActiveUsers(n int) {
	m.activeUsers.Set(float64(n))
}

// SetInventory заменяет уровень остатков категории.
func (m *Metrics) SetInventory(category string, level int) {
	m.inventoryLevel.WithLabelValues(category).Set(float64(level))
}

// IncOrderEvent учитывает попытку публикации события заказа.
// result: "published" или "failed".
func (m *Metrics) IncOrderEvent(result string) {
	m.orderEvents.WithLabelValues(result).Inc()
}

// IncEventProcessed учитывает обработанное событие заказа.
// result: "processed" или "failed".
func (m *Metrics) IncEventProcessed(event, result string) {
	m.eventsProcessed.WithLabelValues(event, result).Inc()
}

// ObserveFulfillment записывает длительность выполнения заказа.
func (m *Metrics) ObserveFulfillment(d time.Duration) {
	m.fulfillment.Observe(d.Seconds())
}
