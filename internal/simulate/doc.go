// Package simulate изображает работу магазина: случайные задержки,
// исход оплаты и сгенерированные данные.
//
// # Simulator
//
// Единица симулированной работы. Выбирает задержку равномерно из диапазона,
// блокирует вызывающего на это время и возвращает длительность.
// Отмены нет: начатая задержка всегда доигрывается до конца.
//
//   - PageLoad — загрузка страницы: таймер гистограммы по page_type и
//     счётчик успешных загрузок
//   - Process  — обработка заказа (оплата), без метрик страниц
//
// # Rand
//
// Источник случайности подменяемый: в тестах передаётся детерминированная
// реализация, в сервисе — math/rand/v2.
//
// # Catalog
//
// Генерирует товары и покупателей через gofakeit.
package simulate
