package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeOrders Exchange = "storefront.orders"
	ExchangeDLQ    Exchange = "storefront.dlq"
)

// Queues — имена очередей.
const (
	QueueOrderEvents Queue = "orders.events"
	QueueFulfillment Queue = "orders.fulfillment"
	QueueDLQOrders   Queue = "dlq.orders"
)

// Routing keys.
const (
	RoutingKeyOrderCompleted RoutingKey = "order.completed"
	RoutingKeyOrderFailed    RoutingKey = "order.failed"
	RoutingKeyOrderAll       RoutingKey = "order.*"
	RoutingKeyDLQOrders      RoutingKey = "orders"
)

// ExchangeDecl — объявление обменника.
type ExchangeDecl struct {
	Name Exchange
	Kind string
}

// QueueDecl — объявление очереди с привязкой к обменнику.
type QueueDecl struct {
	Name       Queue
	Exchange   Exchange
	RoutingKey RoutingKey

	// DeadLetter — отклонённые сообщения уходят в ExchangeDLQ.
	DeadLetter bool

	// Consumer — кто читает очередь, для TopologyInfo.
	Consumer string
}

// Topology — обменники и очереди магазина. Все durable.
var Topology = struct {
	Exchanges []ExchangeDecl
	Queues    []QueueDecl
}{
	Exchanges: []ExchangeDecl{
		{Name: ExchangeOrders, Kind: amqp.ExchangeTopic},
		{Name: ExchangeDLQ, Kind: amqp.ExchangeDirect},
	},
	Queues: []QueueDecl{
		{
			Name:       QueueOrderEvents,
			Exchange:   ExchangeOrders,
			RoutingKey: RoutingKeyOrderAll,
			DeadLetter: true,
			Consumer:   "storefront-cli events",
		},
		{
			Name:       QueueFulfillment,
			Exchange:   ExchangeOrders,
			RoutingKey: RoutingKeyOrderAll,
			DeadLetter: true,
			Consumer:   "storefront-worker",
		},
		{
			Name:       QueueDLQOrders,
			Exchange:   ExchangeDLQ,
			RoutingKey: RoutingKeyDLQOrders,
			Consumer:   "manual processing",
		},
	},
}

// args возвращает аргументы x-* для QueueDeclare.
func (q QueueDecl) args() amqp.Table {
	if !q.DeadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQOrders),
	}
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range Topology.Exchanges {
			err := ch.ExchangeDeclare(
				string(ex.Name), // name
				ex.Kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
			}
		}

		for _, q := range Topology.Queues {
			if _, err := ch.QueueDeclare(string(q.Name), true, false, false, false, q.args()); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.Name, err)
			}
			if err := ch.QueueBind(string(q.Name), string(q.RoutingKey), string(q.Exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.Name, q.Exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	var b strings.Builder
	b.WriteString("Storefront RabbitMQ topology:\n")

	for _, ex := range Topology.Exchanges {
		fmt.Fprintf(&b, "  %s (%s)\n", ex.Name, ex.Kind)
		for _, q := range Topology.Queues {
			if q.Exchange != ex.Name {
				continue
			}
			fmt.Fprintf(&b, "    └── %s [routing: %s] consumer: %s", q.Name, q.RoutingKey, q.Consumer)
			if q.DeadLetter {
				fmt.Fprintf(&b, ", DLQ: %s", QueueDLQOrders)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
