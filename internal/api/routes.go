package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Страницы
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /products", h.Products)

	// Заказы
	mux.HandleFunc("POST /orders", h.CreateOrder)

	// Система
	mux.HandleFunc("GET /metrics", h.Metrics)
	mux.HandleFunc("GET /health", h.Health)
}

// Routes возвращает корневой http.Handler сервиса.
//
// otelhttp снаружи: span обработчика становится дочерним к серверному,
// а Recovery помечает серверный span при панике.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		SecureHeaders(),
		CORS(),
	)

	return otelhttp.NewHandler(chain(mux), "storefront-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
