// Package worker выполняет заказы по событиям из RabbitMQ.
//
// # Обзор
//
// Worker — stateless компонент, который потребляет события заказов,
// опубликованные API, из очереди orders.fulfillment. Worker отвечает за:
//
//   - Продолжение trace'а оформления заказа (trace context из заголовков AMQP)
//   - Выбор executor'а по routing key события
//   - Retry временных ошибок с exponential backoff
//   - Метрики обработанных событий и длительности выполнения заказа
//
// Workers масштабируются горизонтально: несколько экземпляров
// потребляют из одной очереди.
//
// # Ключевые компоненты
//
// ## Worker
//
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    Conn:     mqConn,
//	    Registry: worker.NewRegistry(sim, worker.DefaultCarrierFailureRate),
//	    Metrics:  metrics,
//	    Tracer:   tracer,
//	    Logger:   logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Executor
//
// Интерфейс обработки события одного типа:
//
//	type Executor interface {
//	    Execute(ctx context.Context, event mq.OrderEventPayload) error
//	}
//
// Реализации:
//   - FulfillExecutor — order.completed: этапы pick, pack, ship
//   - DeclineExecutor — order.failed: уведомление покупателю
//
// # Ошибки
//
// Неразбираемые события и неизвестные routing key — постоянные ошибки:
// HandleEvent оборачивает их в mq.Permanent, и сообщение сразу уходит в DLQ.
// Отказ службы доставки — временная ошибка: Worker повторяет её в процессе
// согласно RetryPolicy, после исчерпания попыток сообщение получает одну
// повторную доставку от RabbitMQ.
package worker
