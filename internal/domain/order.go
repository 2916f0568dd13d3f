package domain

import (
	"fmt"
	"math"
	"time"
)

// PaymentMethodDefault — способ оплаты, если клиент его не указал.
const PaymentMethodDefault = "credit_card"

// CategoryUnknown — категория для метрик, если у первой позиции её нет.
const CategoryUnknown = "unknown"

// LineItem — позиция заказа в том виде, в каком её прислал клиент.
type LineItem struct {
	ProductID string  `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

// Validate проверяет цену (>= 0) и количество (>= 1).
func (li LineItem) Validate() error {
	if math.IsNaN(li.Price) || math.IsInf(li.Price, 0) || li.Price < 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidLineItem, li.Price)
	}
	if li.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidLineItem, li.Quantity)
	}
	return nil
}

// Subtotal возвращает price × quantity.
func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Quantity)
}

// Customer — сгенерированные данные покупателя. Не валидируются.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Order — заказ, живущий в пределах одного запроса.
//
// Total фиксируется в NewOrder и больше не пересчитывается.
type Order struct {
	ID             string
	Items          []LineItem
	Total          float64
	RawTotal       float64
	PaymentMethod  string
	Status         OrderStatus
	Customer       Customer
	Timestamp      time.Time
	ProcessingTime time.Duration
}

// OrderTotal возвращает сумму price × quantity без округления.
func OrderTotal(items []LineItem) (float64, error) {
	if len(items) == 0 {
		return 0, ErrNoItems
	}

	var total float64
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		total += item.Subtotal()
	}

	// RoundCents умножает на 100 — сумма должна это пережить.
	if math.IsNaN(total) || math.Abs(total) > maxRoundable {
		return 0, ErrTotalOverflow
	}
	return total, nil
}

// maxRoundable — наибольшая сумма, для которой RoundCents остаётся конечным.
const maxRoundable = math.MaxFloat64 / 100

// RoundCents округляет до 2 знаков после запятой.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// OrderParams — входные данные для NewOrder.
type OrderParams struct {
	ID             string
	Items          []LineItem
	PaymentMethod  string
	Status         OrderStatus
	Customer       Customer
	Timestamp      time.Time
	ProcessingTime time.Duration
}

// NewOrder создаёт заказ и вычисляет Total.
func NewOrder(p OrderParams) (*Order, error) {
	total, err := OrderTotal(p.Items)
	if err != nil {
		return nil, err
	}

	method := p.PaymentMethod
	if method == "" {
		method = PaymentMethodDefault
	}

	return &Order{
		ID:             p.ID,
		Items:          p.Items,
		Total:          RoundCents(total),
		RawTotal:       total,
		PaymentMethod:  method,
		Status:         p.Status,
		Customer:       p.Customer,
		Timestamp:      p.Timestamp,
		ProcessingTime: p.ProcessingTime,
	}, nil
}

// PrimaryCategory возвращает категорию первой позиции или CategoryUnknown.
func (o *Order) PrimaryCategory() string {
	if len(o.Items) == 0 || o.Items[0].Category == "" {
		return CategoryUnknown
	}
	return o.Items[0].Category
}

// IsCompleted возвращает true, если оплата прошла.
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}
