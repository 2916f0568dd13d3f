package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/simulate"
)

// Executor — обработчик события заказа одного типа.
//
// Реализации: FulfillExecutor (order.completed), DeclineExecutor (order.failed).
// ctx несёт trace context, извлечённый из заголовков сообщения.
type Executor interface {
	Execute(ctx context.Context, event mq.OrderEventPayload) error
}

// Registry — реестр executor'ов по routing key.
type Registry struct {
	executors map[mq.RoutingKey]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
func NewRegistry(sim *simulate.Simulator, carrierFailureRate float64) *Registry {
	r := &Registry{executors: make(map[mq.RoutingKey]Executor)}
	r.Register(mq.RoutingKeyOrderCompleted, NewFulfillExecutor(sim, carrierFailureRate))
	r.Register(mq.RoutingKeyOrderFailed, &DeclineExecutor{})
	return r
}

// Register добавляет executor для routing key.
func (r *Registry) Register(key mq.RoutingKey, executor Executor) {
	r.executors[key] = executor
}

// Get возвращает executor для routing key.
func (r *Registry) Get(key mq.RoutingKey) (Executor, error) {
	executor, ok := r.executors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, key)
	}
	return executor, nil
}
