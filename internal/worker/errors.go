package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownEvent — нет executor'а для routing key события.
	ErrUnknownEvent = errors.New("unknown order event")

	// ErrInvalidEvent — payload события не разбирается или неполон.
	ErrInvalidEvent = errors.New("invalid order event")

	// ErrCarrierUnavailable — служба доставки не приняла отправление (временная ошибка).
	ErrCarrierUnavailable = errors.New("carrier unavailable")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
