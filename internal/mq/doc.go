// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go  — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go    — объявление exchanges, queues, bindings
//   - publisher.go   — публикация событий о заказах
//   - consumer.go    — потребление сообщений, ack/requeue/DLQ (Settle)
//   - propagation.go — trace context в заголовках AMQP
//
// Типы сообщений:
//   - order.completed — оплата заказа прошла
//   - order.failed    — оплата заказа отклонена
//
// Exchanges:
//   - storefront.orders — события заказов (topic)
//   - storefront.dlq    — dead letter queue
//
// Queues:
//   - orders.events      — все события, читает storefront-cli events
//   - orders.fulfillment — все события, читает storefront-worker
//   - dlq.orders         — сообщения, не обработанные после redelivery
package mq
