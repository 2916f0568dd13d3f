package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// HomeResponse — главная страница.
type HomeResponse struct {
	Message   string `json:"message"`
	LoadTime  string `json:"loadTime"`
	Timestamp string `json:"timestamp"`
}

// Product — товар из /products.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	InStock     bool    `json:"inStock"`
}

// ProductsResponse — страница товаров.
type ProductsResponse struct {
	Products  []Product `json:"products"`
	LoadTime  string    `json:"loadTime"`
	Timestamp string    `json:"timestamp"`
}

// OrderItem — позиция заказа.
type OrderItem struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
}

// Customer — покупатель заказа.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// OrderResponse — заказ из API.
type OrderResponse struct {
	ID             string      `json:"id"`
	Items          []OrderItem `json:"items"`
	Total          float64     `json:"total"`
	PaymentMethod  string      `json:"paymentMethod"`
	Status         string      `json:"status"`
	Customer       Customer    `json:"customer"`
	Timestamp      string      `json:"timestamp"`
	ProcessingTime string      `json:"processingTime"`
}

// HealthResponse — состояние сервиса.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    float64        `json:"uptime"`
	Memory    map[string]any `json:"memory"`
	Version   string         `json:"version"`
}

// --- Request types ---

// CreateOrderRequest — создание заказа.
type CreateOrderRequest struct {
	Items         []OrderItem `json:"items"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
}

// --- Errors ---

// APIError — ответ API с ошибкой.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: HTTP %d: %s", e.StatusCode, e.Message)
}

// StatusCode возвращает HTTP статус из ошибки API или 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Storefront API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "storefront-cli/1.0",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithUserAgent задаёт User-Agent запросов.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// Health возвращает состояние сервиса.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	err := c.get(ctx, "/health", &health)
	return &health, err
}

// Home загружает главную страницу.
func (c *Client) Home(ctx context.Context) (*HomeResponse, error) {
	var home HomeResponse
	err := c.get(ctx, "/", &home)
	return &home, err
}

// Products загружает страницу товаров.
func (c *Client) Products(ctx context.Context) (*ProductsResponse, error) {
	var products ProductsResponse
	err := c.get(ctx, "/products", &products)
	return &products, err
}

// CreateOrder создаёт заказ.
//
// Отклонённая оплата — не ошибка: API отвечает 4xx с телом заказа,
// и клиент возвращает заказ со статусом failed вместе с кодом ответа.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	var order OrderResponse
	if jsonErr := json.Unmarshal(body, &order); jsonErr == nil && order.ID != "" {
		return &order, resp.StatusCode, nil
	}

	if err := errorFromBody(resp.StatusCode, body); err != nil {
		return nil, resp.StatusCode, err
	}
	return nil, resp.StatusCode, fmt.Errorf("unexpected order response: HTTP %d", resp.StatusCode)
}

// Metrics возвращает метрики в текстовом формате Prometheus.
func (c *Client) Metrics(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/metrics", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if err := errorFromBody(resp.StatusCode, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := errorFromBody(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	return c.httpClient.Do(req)
}

// errorFromBody возвращает *APIError для статусов >= 400.
func errorFromBody(status int, body []byte) error {
	if status < 400 {
		return nil
	}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return &APIError{StatusCode: status}
	}
	return &APIError{StatusCode: status, Message: er.Error}
}
