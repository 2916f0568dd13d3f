package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// defaultOrderItem — позиция, если --item не задан.
var defaultOrderItem = OrderItem{
	ID:       "test-1",
	Name:     "Test Product",
	Price:    29.99,
	Quantity: 2,
	Category: "electronics",
}

// NewOrderCmd создаёт команду создания заказа.
func NewOrderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var items []string
	var paymentMethod string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place an order",
		Long: `Place an order through POST /orders.

Items are given as PRICE:QUANTITY[:CATEGORY[:NAME]], for example:

  storefront order --item 29.99:2:electronics --item 5:1:books

A declined payment is reported as a failed order, not as an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CreateOrderRequest{PaymentMethod: paymentMethod}

			if len(items) == 0 {
				req.Items = []OrderItem{defaultOrderItem}
			}
			for _, raw := range items {
				item, err := ParseOrderItem(raw)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
			}

			order, status, err := clientFn().CreateOrder(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := outputFn()
			if order.Status == "completed" {
				out.Success(fmt.Sprintf("Order placed: %s", order.ID))
			} else {
				out.Success(fmt.Sprintf("Payment declined (HTTP %d): %s", status, order.ID))
			}
			out.Print(
				[]string{"ID", "STATUS", "TOTAL", "PAYMENT", "ITEMS", "CUSTOMER", "PROCESSING"},
				[][]string{{
					order.ID,
					order.Status,
					formatMoney(order.Total),
					order.PaymentMethod,
					strconv.Itoa(len(order.Items)),
					order.Customer.Email,
					order.ProcessingTime,
				}},
				order,
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&items, "item", nil, "Order item as PRICE:QUANTITY[:CATEGORY[:NAME]] (repeatable)")
	cmd.Flags().StringVar(&paymentMethod, "payment-method", "credit_card", "Payment method")

	return cmd
}

// ParseOrderItem разбирает позицию вида PRICE:QUANTITY[:CATEGORY[:NAME]].
func ParseOrderItem(raw string) (OrderItem, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 2 {
		return OrderItem{}, fmt.Errorf("invalid item %q, expected PRICE:QUANTITY[:CATEGORY[:NAME]]", raw)
	}

	price, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || price < 0 {
		return OrderItem{}, fmt.Errorf("invalid price in item %q", raw)
	}

	quantity, err := strconv.Atoi(parts[1])
	if err != nil || quantity < 1 {
		return OrderItem{}, fmt.Errorf("invalid quantity in item %q", raw)
	}

	item := OrderItem{Price: price, Quantity: quantity}
	if len(parts) > 2 {
		item.Category = parts[2]
	}
	if len(parts) > 3 {
		item.Name = parts[3]
	}
	return item, nil
}
