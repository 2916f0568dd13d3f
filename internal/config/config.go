// Package config загружает конфигурацию сервиса из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/shaiso/Storefront/internal/telemetry"
)

// Ошибки валидации конфигурации.
var (
	ErrInvalidPort           = errors.New("port must be in 1..65535")
	ErrInvalidRate           = errors.New("payment success rate must be in (0, 1]")
	ErrInvalidCarrierRate    = errors.New("carrier failure rate must be in [0, 1)")
	ErrInvalidDeclinedStatus = errors.New("declined order status must be in 400..599")
)

// Config — конфигурация storefront-api.
type Config struct {
	Port int `env:"PORT" envDefault:"3000"`

	// Логи
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogDir    string `env:"LOG_DIR" envDefault:"logs"`

	// Телеметрия
	Sinks           []string      `env:"TELEMETRY_SINKS" envDefault:"console" envSeparator:","`
	Protocol        string        `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"http"`
	Endpoint        string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
	TracesEndpoint  string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	MetricsEndpoint string        `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	LogsEndpoint    string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	MetricInterval  time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" envDefault:"60s"`
	ServiceName     string        `env:"OTEL_SERVICE_NAME" envDefault:"grafana-demo-ecommerce"`
	ServiceVersion  string        `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	Environment     string        `env:"DEPLOYMENT_ENVIRONMENT" envDefault:"development"`

	// Фоновые gauge'ы
	ActiveUsersSchedule string `env:"ACTIVE_USERS_SCHEDULE" envDefault:"@every 5s"`
	InventorySchedule   string `env:"INVENTORY_SCHEDULE" envDefault:"@every 30s"`

	// Симуляция заказов
	PaymentSuccessRate  float64 `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.9"`
	OrderDeclinedStatus int     `env:"ORDER_DECLINED_STATUS" envDefault:"400"`
	RandSeed            uint64  `env:"RAND_SEED" envDefault:"0"`

	// События заказов (пусто — выключено)
	RabbitMQURL string `env:"RABBITMQ_URL"`

	// Fulfillment worker
	WorkerPort         int     `env:"WORKER_PORT" envDefault:"3001"`
	CarrierFailureRate float64 `env:"CARRIER_FAILURE_RATE" envDefault:"0.05"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load читает конфигурацию из окружения и валидирует её.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые env не может проверить сам.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.WorkerPort < 1 || c.WorkerPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.WorkerPort)
	}
	if c.CarrierFailureRate < 0 || c.CarrierFailureRate >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidCarrierRate, c.CarrierFailureRate)
	}
	if c.PaymentSuccessRate <= 0 || c.PaymentSuccessRate > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, c.PaymentSuccessRate)
	}
	if c.OrderDeclinedStatus < 400 || c.OrderDeclinedStatus > 599 {
		return fmt.Errorf("%w: %d", ErrInvalidDeclinedStatus, c.OrderDeclinedStatus)
	}
	if _, err := telemetry.ParseSinks(c.Sinks); err != nil {
		return err
	}
	if _, err := telemetry.ParseProtocol(c.Protocol); err != nil {
		return err
	}
	return nil
}

// Addr возвращает адрес для http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// WorkerAddr возвращает адрес health/metrics сервера worker'а.
func (c *Config) WorkerAddr() string {
	return fmt.Sprintf(":%d", c.WorkerPort)
}

// TelemetryOptions собирает параметры для telemetry.Setup.
// Вызывать после Validate.
func (c *Config) TelemetryOptions() telemetry.Options {
	sinks, _ := telemetry.ParseSinks(c.Sinks)
	protocol, _ := telemetry.ParseProtocol(c.Protocol)

	return telemetry.Options{
		ServiceName:     c.ServiceName,
		ServiceVersion:  c.ServiceVersion,
		Environment:     c.Environment,
		Sinks:           sinks,
		Protocol:        protocol,
		Endpoint:        c.Endpoint,
		TracesEndpoint:  c.TracesEndpoint,
		MetricsEndpoint: c.MetricsEndpoint,
		LogsEndpoint:    c.LogsEndpoint,
		MetricInterval:  c.MetricInterval,
		LogLevel:        c.LogLevel,
		LogFormat:       c.LogFormat,
		LogDir:          c.LogDir,
	}
}
