package domain

import "errors"

// Ошибки доменной модели.
var (
	// ErrNoItems — заказ без позиций.
	ErrNoItems = errors.New("items are required")

	// ErrInvalidLineItem — позиция с некорректной ценой или количеством.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrTotalOverflow — сумма заказа не представима числом.
	ErrTotalOverflow = errors.New("order total overflow")
)
