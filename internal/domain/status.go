package domain

import "net/http"

// OrderStatus — итоговый статус заказа.
//
// Жизненный цикл заказа в обработчике:
//
//	received → validated → processing → settled (completed | failed)
//	         ↘ rejected (нет позиций)
//
// rejected не является статусом заказа: заказ в этом случае не создаётся.
type OrderStatus string

const (
	// OrderStatusCompleted — оплата прошла.
	OrderStatusCompleted OrderStatus = "completed"

	// OrderStatusFailed — оплата отклонена. Это бизнес-исход, а не ошибка системы.
	OrderStatusFailed OrderStatus = "failed"
)

// DefaultDeclinedHTTPStatus — код ответа для отклонённой оплаты.
// Совпадает с исторической версией API, где declined = 400.
const DefaultDeclinedHTTPStatus = http.StatusBadRequest

// HTTPStatus возвращает код ответа для статуса.
// declined — код для failed; 0 означает DefaultDeclinedHTTPStatus.
func (s OrderStatus) HTTPStatus(declined int) int {
	if s == OrderStatusCompleted {
		return http.StatusCreated
	}
	if declined == 0 {
		return DefaultDeclinedHTTPStatus
	}
	return declined
}

// StatusFromPayment возвращает статус по результату оплаты.
func StatusFromPayment(approved bool) OrderStatus {
	if approved {
		return OrderStatusCompleted
	}
	return OrderStatusFailed
}
