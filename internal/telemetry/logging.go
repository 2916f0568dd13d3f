package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

// LogFileName — имя файла для file sink.
const LogFileName = "ecommerce-app.log"

// LogLevel определяет уровень логирования по имени.
// Возможные значения (без учёта регистра): debug, info, warn, error.
// По умолчанию: info
func LogLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogOptions — параметры логгера.
type LogOptions struct {
	Level  string
	Format string // "json" (по умолчанию) или "text"
	Sinks  []Sink
	Dir    string // каталог для file sink

	// Stdout — вывод console sink (по умолчанию os.Stdout).
	Stdout io.Writer

	// Provider — OTel LoggerProvider для remote sink.
	Provider otellog.LoggerProvider

	// Scope — имя instrumentation scope для remote sink.
	Scope string
}

// SetupLogger инициализирует глобальный логгер.
//
// Каждый sink получает свой handler, записи расходятся во все сразу:
//   - console — stdout, формат из LOG_FORMAT
//   - file    — <Dir>/ecommerce-app.log, всегда JSON
//   - remote  — OpenTelemetry logs через Provider
//
// Возвращённый io.Closer закрывает файл file sink'а.
func SetupLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	level := LogLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var (
		handlers []slog.Handler
		closers  multiCloser
	)

	for _, sink := range opts.Sinks {
		switch sink {
		case SinkConsole:
			if opts.Format == "text" {
				handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
			} else {
				handlers = append(handlers, slog.NewJSONHandler(stdout, handlerOpts))
			}

		case SinkFile:
			f, err := openLogFile(opts.Dir)
			if err != nil {
				closers.Close()
				return nil, nil, err
			}
			closers = append(closers, f)
			handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))

		case SinkRemote:
			if opts.Provider == nil {
				continue
			}
			remote := otelslog.NewHandler(opts.Scope, otelslog.WithLoggerProvider(opts.Provider))
			handlers = append(handlers, &levelHandler{Handler: remote, level: level})

		default:
			closers.Close()
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSink, sink)
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.DiscardHandler
	case 1:
		handler = handlers[0]
	default:
		handler = slog.NewMultiHandler(handlers...)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, closers, nil
}

// openLogFile открывает файл логов на дозапись, создавая каталог.
func openLogFile(dir string) (*os.File, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// levelHandler отсекает записи ниже level.
// otelslog передаёт всё, что пропускает LoggerProvider.
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithOrderID возвращает логгер с добавленным order_id.
func WithOrderID(logger *slog.Logger, orderID string) *slog.Logger {
	return logger.With("order_id", orderID)
}

// WithTraceID возвращает логгер с добавленным trace_id.
func WithTraceID(logger *slog.Logger, traceID string) *slog.Logger {
	if traceID == "" {
		return logger
	}
	return logger.With("trace_id", traceID)
}
