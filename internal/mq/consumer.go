package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPermanent помечает ошибку, после которой повтор бессмысленен:
// сообщение уходит в DLQ без redelivery.
var ErrPermanent = errors.New("permanent failure")

// Permanent оборачивает err в ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler — функция обработки сообщения.
// Ошибка означает nack: см. Settle.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// RoutingKey возвращает routing key, с которым сообщение было опубликовано.
func (d *Delivery) RoutingKey() RoutingKey {
	return RoutingKey(d.Raw.RoutingKey)
}

// OrderEvent разбирает payload как событие заказа.
func (d *Delivery) OrderEvent() (OrderEventPayload, error) {
	return ParsePayload[OrderEventPayload](&d.Message)
}

// Settlement — чем закончилась обработка сообщения.
type Settlement int

const (
	// SettleAck — обработано.
	SettleAck Settlement = iota
	// SettleRequeue — вернуть в очередь для одной повторной доставки.
	SettleRequeue
	// SettleDeadLetter — отправить в DLQ.
	SettleDeadLetter
)

func (s Settlement) String() string {
	switch s {
	case SettleAck:
		return "ack"
	case SettleRequeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// Settle выбирает исход по ошибке обработчика.
// Каждое сообщение получает одну повторную доставку, затем уходит в DLQ.
// Постоянные ошибки уходят в DLQ сразу.
func Settle(err error, redelivered bool) Settlement {
	switch {
	case err == nil:
		return SettleAck
	case errors.Is(err, ErrPermanent), redelivered:
		return SettleDeadLetter
	default:
		return SettleRequeue
	}
}

// Consumer потребляет сообщения из очереди RabbitMQ и переподписывается
// после reconnect.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	mu     sync.Mutex
	cancel context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держит consumer (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Start потребляет сообщения до отмены ctx или вызова Stop.
// Всегда возвращает ошибку контекста.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	for {
		deliveries, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer started")
			err = c.drain(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
}

// subscribe выставляет prefetch и начинает потребление.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (мы ack вручную)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(raw, c.handle(ctx, raw))
		}
	}
}

// handle разбирает сообщение и вызывает обработчик.
// Паника обработчика считается постоянной ошибкой.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) (err error) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		return Permanent(err)
	}

	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("handler panic", "message_id", msg.ID, "panic", p, "stack", string(debug.Stack()))
			err = Permanent(fmt.Errorf("handler panic: %v", p))
		}
	}()

	ctx = ExtractContext(ctx, raw.Headers)
	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("handler failed", "message_id", msg.ID, "type", msg.Type, "error", err)
		return err
	}
	return nil
}

// settle подтверждает или отклоняет сообщение.
func (c *Consumer) settle(raw amqp.Delivery, err error) {
	outcome := Settle(err, raw.Redelivered)

	var settleErr error
	switch outcome {
	case SettleAck:
		settleErr = raw.Ack(false)
	case SettleRequeue:
		settleErr = raw.Nack(false, true)
	case SettleDeadLetter:
		settleErr = raw.Nack(false, false)
	}

	if settleErr != nil {
		c.logger.Warn("failed to settle message", "message_id", raw.MessageId, "outcome", outcome, "error", settleErr)
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после json.Unmarshal — map[string]any, перекодируем в T
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
