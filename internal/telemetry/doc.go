// Package telemetry обеспечивает наблюдаемость сервиса.
//
// Включает:
//   - metrics.go — Prometheus метрики магазина (явный реестр, без глобального состояния)
//   - span.go    — обёртка над trace.Span с гарантированным однократным End
//   - logging.go — structured logging через slog с несколькими sink'ами
//   - setup.go   — единая инициализация OpenTelemetry (traces, metrics push, logs)
//
// Поддерживаемые sink'и: console, file, remote. Протокол remote: http или grpc.
package telemetry
