package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/common/expfmt"
)

// HealthStatus — статус в ответе /health.
const HealthStatus = "healthy"

// Health отдаёт состояние процесса. Всегда 200.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	Success(w, HealthResponse{
		Status:    HealthStatus,
		Timestamp: now.UTC(),
		Uptime:    max(now.Sub(h.startTime).Seconds(), 0),
		Memory:    ReadMemoryStats(),
		Version:   h.version,
	})
}

// Metrics отдаёт метрики в текстовом формате Prometheus.
// GET /metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.encodeMetrics()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// encodeMetrics собирает метрики целиком до отправки,
// чтобы ошибка не оборвала уже начатый ответ.
func (h *Handler) encodeMetrics() ([]byte, string, error) {
	if h.gatherer == nil {
		return nil, "", fmt.Errorf("metrics gatherer is not configured")
	}

	families, err := h.gatherer.Gather()
	if err != nil {
		return nil, "", fmt.Errorf("gather metrics: %w", err)
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", fmt.Errorf("encode metrics: %w", err)
		}
	}

	return buf.Bytes(), string(format), nil
}
