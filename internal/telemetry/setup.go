package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/contrib/bridges/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Sink — куда уходит телеметрия.
type Sink string

const (
	SinkConsole Sink = "console"
	SinkFile    Sink = "file"
	SinkRemote  Sink = "remote"
)

// Protocol — транспорт OTLP для remote sink.
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolGRPC Protocol = "grpc"
)

// Ошибки конфигурации телеметрии.
var (
	ErrUnknownSink     = errors.New("unknown telemetry sink")
	ErrUnknownProtocol = errors.New("unknown otlp protocol")
)

// ParseSinks разбирает список sink'ов, пустые элементы пропускаются.
func ParseSinks(names []string) ([]Sink, error) {
	sinks := make([]Sink, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		sink := Sink(name)
		switch sink {
		case SinkConsole, SinkFile, SinkRemote:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
		if !slices.Contains(sinks, sink) {
			sinks = append(sinks, sink)
		}
	}
	return sinks, nil
}

// ParseProtocol разбирает протокол OTLP. Пустая строка — http.
func ParseProtocol(name string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(name))); p {
	case "", ProtocolHTTP, "http/protobuf":
		return ProtocolHTTP, nil
	case ProtocolGRPC:
		return ProtocolGRPC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
}

// Options — параметры единой инициализации телеметрии.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Sinks    []Sink
	Protocol Protocol

	// Endpoint — базовый адрес коллектора (http://host:4318 или http://host:4317 для grpc).
	Endpoint string

	// Переопределения адреса для отдельных сигналов, используются как есть.
	TracesEndpoint  string
	MetricsEndpoint string
	LogsEndpoint    string

	// MetricInterval — период отправки метрик в remote sink.
	MetricInterval time.Duration

	LogLevel  string
	LogFormat string
	LogDir    string

	// Stdout — вывод console sink (по умолчанию os.Stdout).
	Stdout io.Writer
}

// Telemetry — результат Setup.
type Telemetry struct {
	Logger         *slog.Logger
	TracerProvider *sdktrace.TracerProvider

	serviceName string
	shutdowns   []func(context.Context) error
}

// Setup инициализирует traces, push метрик и логи.
//
// Метрики остаются в Prometheus реестре gatherer: для remote sink они
// дополнительно отправляются по OTLP через bridge. Tracer provider
// регистрируется глобально, чтобы otelhttp и обработчики писали в одно место.
//
// Shutdown нужно вызвать при остановке, чтобы сбросить буферы.
func Setup(ctx context.Context, opts Options, gatherer prometheus.Gatherer) (*Telemetry, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Protocol == "" {
		opts.Protocol = ProtocolHTTP
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	t := &Telemetry{serviceName: opts.ServiceName}
	remote := slices.Contains(opts.Sinks, SinkRemote)

	// Traces
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if slices.Contains(opts.Sinks, SinkConsole) {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Stdout))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	if remote {
		exp, err := newTraceExporter(ctx, opts)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	t.TracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	t.shutdowns = append(t.shutdowns, t.TracerProvider.Shutdown)
	otel.SetTracerProvider(t.TracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Metrics push + logs
	var loggerProvider *sdklog.LoggerProvider
	if remote {
		mp, err := newMeterProvider(ctx, opts, res, gatherer)
		if err != nil {
			t.Shutdown(ctx)
			return nil, err
		}
		otel.SetMeterProvider(mp)
		t.shutdowns = append(t.shutdowns, mp.Shutdown)

		loggerProvider, err = newLoggerProvider(ctx, opts, res)
		if err != nil {
			t.Shutdown(ctx)
			return nil, err
		}
		t.shutdowns = append(t.shutdowns, loggerProvider.Shutdown)
	}

	logOpts := LogOptions{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
		Sinks:  opts.Sinks,
		Dir:    opts.LogDir,
		Stdout: opts.Stdout,
		Scope:  opts.ServiceName,
	}
	if loggerProvider != nil {
		logOpts.Provider = loggerProvider
	}

	logger, closer, err := SetupLogger(logOpts)
	if err != nil {
		t.Shutdown(ctx)
		return nil, err
	}
	t.Logger = logger
	t.shutdowns = append(t.shutdowns, func(context.Context) error { return closer.Close() })

	return t, nil
}

// Tracer возвращает tracer сервиса.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.TracerProvider.Tracer(t.serviceName)
}

// Shutdown сбрасывает и закрывает провайдеры в обратном порядке.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil
	return errors.Join(errs...)
}

// signalEndpoint возвращает адрес коллектора для сигнала.
// Для http к базовому адресу добавляется стандартный путь /v1/<signal>.
func signalEndpoint(opts Options, override, signal string) string {
	if override != "" {
		return override
	}
	base := strings.TrimRight(opts.Endpoint, "/")
	if opts.Protocol == ProtocolGRPC {
		return base
	}
	return base + "/v1/" + signal
}

func newTraceExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	endpoint := signalEndpoint(opts, opts.TracesEndpoint, "traces")

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch opts.Protocol {
	case ProtocolGRPC:
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
	case ProtocolHTTP:
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, opts.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", opts.Protocol, err)
	}
	return exp, nil
}

func newMeterProvider(ctx context.Context, opts Options, res *resource.Resource, gatherer prometheus.Gatherer) (*sdkmetric.MeterProvider, error) {
	endpoint := signalEndpoint(opts, opts.MetricsEndpoint, "metrics")

	var (
		exp sdkmetric.Exporter
		err error
	)
	switch opts.Protocol {
	case ProtocolGRPC:
		exp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
	case ProtocolHTTP:
		exp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, opts.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s metric exporter: %w", opts.Protocol, err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if opts.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(opts.MetricInterval))
	}
	if gatherer != nil {
		readerOpts = append(readerOpts, sdkmetric.WithProducer(
			promexporter.NewMetricProducer(promexporter.WithGatherer(gatherer)),
		))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
	), nil
}

func newLoggerProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	endpoint := signalEndpoint(opts, opts.LogsEndpoint, "logs")

	var (
		exp sdklog.Exporter
		err error
	)
	switch opts.Protocol {
	case ProtocolGRPC:
		exp, err = otlploggrpc.New(ctx, otlploggrpc.WithEndpointURL(endpoint))
	case ProtocolHTTP:
		exp, err = otlploghttp.New(ctx, otlploghttp.WithEndpointURL(endpoint))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, opts.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s log exporter: %w", opts.Protocol, err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
	), nil
}
