package api

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/shaiso/Storefront/internal/domain"
)

// FormatMillis форматирует длительность как в старом API: "123.45ms".
func FormatMillis(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// Page DTOs

// HomeResponse — ответ GET /.
type HomeResponse struct {
	Message   string    `json:"message"`
	LoadTime  string    `json:"loadTime"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductsResponse — ответ GET /products.
type ProductsResponse struct {
	Products  []domain.Product `json:"products"`
	LoadTime  string           `json:"loadTime"`
	Timestamp time.Time        `json:"timestamp"`
}

// Order DTOs

// CreateOrderRequest — запрос на создание заказа.
//
// Items держится сырым: отсутствие, null, не массив и пустой массив
// считаются ошибкой валидации, а битые позиции внутри массива — нет.
type CreateOrderRequest struct {
	Items         json.RawMessage `json:"items"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
}

// OrderResponse — ответ с заказом.
type OrderResponse struct {
	ID             string             `json:"id"`
	Items          []domain.LineItem  `json:"items"`
	Total          float64            `json:"total"`
	PaymentMethod  string             `json:"paymentMethod"`
	Status         domain.OrderStatus `json:"status"`
	Customer       domain.Customer    `json:"customer"`
	Timestamp      time.Time          `json:"timestamp"`
	ProcessingTime string             `json:"processingTime"`
}

// OrderFromDomain конвертирует domain.Order в OrderResponse.
func OrderFromDomain(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		Items:          o.Items,
		Total:          o.Total,
		PaymentMethod:  o.PaymentMethod,
		Status:         o.Status,
		Customer:       o.Customer,
		Timestamp:      o.Timestamp,
		ProcessingTime: FormatMillis(o.ProcessingTime),
	}
}

// System DTOs

// MemoryStats — снимок памяти процесса в байтах.
type MemoryStats struct {
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	HeapSys    uint64 `json:"heapSys"`
	StackInuse uint64 `json:"stackInuse"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

// ReadMemoryStats снимает статистику runtime.
func ReadMemoryStats() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return MemoryStats{
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		HeapSys:    ms.HeapSys,
		StackInuse: ms.StackInuse,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// HealthResponse — ответ GET /health.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Uptime    float64     `json:"uptime"`
	Memory    MemoryStats `json:"memory"`
	Version   string      `json:"version"`
}
