package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeOrderCompleted MessageType = "order.completed"
	MessageTypeOrderFailed    MessageType = "order.failed"
)

// ErrNacked — брокер не подтвердил публикацию.
var ErrNacked = errors.New("publish not confirmed by broker")

// DefaultPublishTimeout — предел ожидания публикации одного события.
const DefaultPublishTimeout = 2 * time.Second

// Результаты публикации для метрики событий.
const (
	PublishResultPublished = "published"
	PublishResultFailed    = "failed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn    *Connection
	logger  *slog.Logger
	metrics *telemetry.Metrics
	timeout time.Duration
}

// PublisherConfig — конфигурация Publisher.
type PublisherConfig struct {
	// Metrics (опционально; если nil — без учёта событий)
	Metrics *telemetry.Metrics

	// Timeout на публикацию (default: 2s)
	Timeout time.Duration
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	return &Publisher{
		conn:    conn,
		logger:  logger,
		metrics: cfg.Metrics,
		timeout: timeout,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// OrderEventPayload — payload события о заказе.
type OrderEventPayload struct {
	OrderID          string             `json:"order_id"`
	Status           domain.OrderStatus `json:"status"`
	Total            float64            `json:"total"`
	PaymentMethod    string             `json:"payment_method"`
	Category         string             `json:"category"`
	ItemsCount       int                `json:"items_count"`
	CustomerEmail    string             `json:"customer_email,omitempty"`
	ProcessingTimeMs float64            `json:"processing_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewOrderEvent строит payload события из заказа.
func NewOrderEvent(order *domain.Order) OrderEventPayload {
	return OrderEventPayload{
		OrderID:          order.ID,
		Status:           order.Status,
		Total:            order.Total,
		PaymentMethod:    order.PaymentMethod,
		Category:         order.PrimaryCategory(),
		ItemsCount:       len(order.Items),
		CustomerEmail:    order.Customer.Email,
		ProcessingTimeMs: float64(order.ProcessingTime) / float64(time.Millisecond),
		CreatedAt:        order.Timestamp,
	}
}

// OrderRoute возвращает тип сообщения и routing key для статуса заказа.
func OrderRoute(status domain.OrderStatus) (MessageType, RoutingKey) {
	if status == domain.OrderStatusCompleted {
		return MessageTypeOrderCompleted, RoutingKeyOrderCompleted
	}
	return MessageTypeOrderFailed, RoutingKeyOrderFailed
}

// Publish публикует сообщение в указанный exchange с routing key.
// Trace context из ctx передаётся в заголовках.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(headers))

	publishing := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		// confirm == nil, если канал не в confirm mode
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("wait confirm for %s: %w", msg.ID, err)
			}
			if !acked {
				return fmt.Errorf("%w: %s", ErrNacked, msg.ID)
			}
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"confirmed", confirm != nil,
		)

		return nil
	})
}

// PublishOrder публикует событие о заказе.
// Потребители: storefront-worker и storefront-cli events.
func (p *Publisher) PublishOrder(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msgType, routingKey := OrderRoute(order.Status)
	msg := &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   NewOrderEvent(order),
		Timestamp: time.Now().UTC(),
	}

	err := p.Publish(ctx, ExchangeOrders, routingKey, msg)
	p.record(err)
	return err
}

func (p *Publisher) record(err error) {
	if p.metrics == nil {
		return
	}
	if err != nil {
		p.metrics.IncOrderEvent(PublishResultFailed)
		return
	}
	p.metrics.IncOrderEvent(PublishResultPublished)
}
