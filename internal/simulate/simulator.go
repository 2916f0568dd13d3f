package simulate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shaiso/Storefront/internal/telemetry"
)

// Статус загрузки страницы в метриках. Симуляция всегда успешна.
const PageStatusSuccess = "success"

// Sleeper блокирует вызывающего на d.
type Sleeper func(d time.Duration)

// Simulator — единица симулированной работы.
type Simulator struct {
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	rand    Rand
	sleep   Sleeper
}

// Config — конфигурация Simulator.
type Config struct {
	Metrics *telemetry.Metrics

	// Tracer (опционально; если nil — no-op)
	Tracer trace.Tracer

	// Rand (опционально; если nil — math/rand/v2)
	Rand Rand

	// Sleep (опционально; если nil — time.Sleep)
	Sleep Sleeper
}

// New создаёт Simulator.
func New(cfg Config) *Simulator {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("simulate")
	}

	r := cfg.Rand
	if r == nil {
		r = NewRand(0)
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Simulator{
		metrics: cfg.Metrics,
		tracer:  tracer,
		rand:    r,
		sleep:   sleep,
	}
}

// Rand возвращает источник случайности симулятора.
func (s *Simulator) Rand() Rand {
	return s.rand
}

// Latency выбирает задержку равномерно из [lo, hi).
func (s *Simulator) Latency(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rand.Float64()*float64(hi-lo))
}

// Process выполняет симулированную обработку и возвращает выбранную задержку.
func (s *Simulator) Process(ctx context.Context, name string, lo, hi time.Duration) time.Duration {
	latency := s.Latency(lo, hi)

	_, span := telemetry.StartSpan(ctx, s.tracer, "simulate."+name,
		attribute.String("simulate.name", name),
		attribute.Float64("simulate.latency_ms", Milliseconds(latency)),
	)
	defer span.End()

	s.sleep(latency)
	return latency
}

// PageLoad симулирует загрузку страницы pageType.
//
// Таймер гистограммы запускается до задержки и останавливается после неё,
// затем увеличивается счётчик {page_type, status="success"}.
func (s *Simulator) PageLoad(ctx context.Context, pageType string, lo, hi time.Duration) time.Duration {
	timer := s.metrics.PageLoadTimer(pageType)

	latency := s.Process(ctx, pageType, lo, hi)

	timer.ObserveDuration()
	s.metrics.IncPageLoad(pageType, PageStatusSuccess)

	return latency
}

// Approve разыгрывает успех с вероятностью rate: оплата заказа или приём посылки перевозчиком.
func (s *Simulator) Approve(rate float64) bool {
	return s.rand.Float64() > 1-rate
}

// Milliseconds переводит длительность в дробные миллисекунды.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
