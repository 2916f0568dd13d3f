// Package cli реализует инструмент командной строки Storefront.
//
// # Обзор
//
// CLI — клиентская утилита для проверки и нагрузки Storefront API.
// С API работает только через HTTP и не импортирует internal/api.
// Команда events читает события заказов напрямую из RabbitMQ через internal/mq.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Storefront API. Инкапсулирует запросы, разбор ответов
// и ошибок вида {"error": "..."}. Отклонённый заказ ошибкой не считается.
//
//	client := cli.NewClient("http://localhost:3000")
//	order, status, err := client.CreateOrder(ctx, req)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: storefront load --json | jq .
//
// ## Commands
//
//   - health, home, products, metrics — одиночные запросы
//   - order  — создание заказа
//   - smoke  — последовательная проверка всех эндпоинтов
//   - load   — конкурентная нагрузка (errgroup)
//   - events — чтение событий заказов из RabbitMQ
//
// Каждая команда создаётся через фабричную функцию (NewSmokeCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
