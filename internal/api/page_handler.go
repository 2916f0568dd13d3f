package api

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// WelcomeMessage — приветствие главной страницы.
const WelcomeMessage = "Welcome to Grafana Demo Ecommerce"

// Диапазоны симулированной загрузки страниц.
const (
	homepageMinLatency = 200 * time.Millisecond
	homepageMaxLatency = 1500 * time.Millisecond
	productsMinLatency = 300 * time.Millisecond
	productsMaxLatency = 2000 * time.Millisecond
)

// Home отдаёт главную страницу.
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartSpan(r.Context(), h.tracer, "homepage-load",
		attribute.String("page.type", "homepage"),
		attribute.String("user.agent", r.UserAgent()),
	)
	defer span.End()

	loadTime := h.sim.PageLoad(ctx, "homepage", homepageMinLatency, homepageMaxLatency)

	span.SetAttributes(
		attribute.Float64("page.load_time_ms", simulate.Milliseconds(loadTime)),
		attribute.String("page.status", simulate.PageStatusSuccess),
	)

	Success(w, HomeResponse{
		Message:   WelcomeMessage,
		LoadTime:  FormatMillis(loadTime),
		Timestamp: h.now().UTC(),
	})
}

// Products отдаёт страницу со сгенерированными товарами.
// GET /products
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartSpan(r.Context(), h.tracer, "products-page-load",
		attribute.String("page.type", "products"),
		attribute.String("user.agent", r.UserAgent()),
	)
	defer span.End()

	loadTime := h.sim.PageLoad(ctx, "products", productsMinLatency, productsMaxLatency)
	products := h.catalog.Products(ProductsPerPage)

	span.SetAttributes(
		attribute.Float64("page.load_time_ms", simulate.Milliseconds(loadTime)),
		attribute.Int("products.count", len(products)),
	)

	Success(w, ProductsResponse{
		Products:  products,
		LoadTime:  FormatMillis(loadTime),
		Timestamp: h.now().UTC(),
	})
}
