// Package api содержит HTTP сервер витрины.
//
// Структура:
//   - handler.go         — Handler с DI (метрики, симулятор, каталог, tracer, publisher)
//   - routes.go          — регистрация маршрутов и otelhttp
//   - middleware.go      — middleware (logging, recovery, secure headers, CORS)
//   - response.go        — JSON-ответы и ответы с ошибкой
//   - dto.go             — Data Transfer Objects (request/response)
//   - page_handler.go    — обработчики для / и /products
//   - order_handler.go   — обработчик для /orders
//   - system_handler.go  — /health и /metrics
//
// Каждый обработчик открывает свой span и закрывает его через defer,
// поэтому span закрывается на любом пути выхода.
package api
