package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span — span одного обработчика.
//
// End можно вызывать сколько угодно раз: span закрывается ровно один раз.
// Обычное использование:
//
//	ctx, span := telemetry.StartSpan(ctx, tracer, "create-order")
//	defer span.End()
type Span struct {
	span trace.Span
	once sync.Once
}

// StartSpan открывает span с начальными атрибутами.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// WithSpan выполняет fn внутри span. Ошибка fn помечает span как errored.
func WithSpan(ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context, span *Span) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartSpan(ctx, tracer, name, attrs...)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.Fail(err)
		return err
	}
	return nil
}

// SetAttributes добавляет атрибуты.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// Fail записывает ошибку и выставляет статус Error.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.SetAttributes(attribute.String("error.message", err.Error()))
}

// End закрывает span. Повторные вызовы игнорируются.
func (s *Span) End() {
	s.once.Do(func() {
		s.span.End()
	})
}

// TraceID возвращает trace id для логов. Пустая строка, если span не записывается.
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
