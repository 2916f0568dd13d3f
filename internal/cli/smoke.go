package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ErrSmokeFailed — хотя бы один шаг smoke-проверки не прошёл.
var ErrSmokeFailed = errors.New("smoke test failed")

// ExpectedProducts — сколько товаров должна вернуть /products.
const ExpectedProducts = 20

// SmokeStep — результат одного шага smoke-проверки.
type SmokeStep struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RunSmoke последовательно проверяет health, главную, товары, заказ и метрики.
// Возвращает ErrSmokeFailed, если хотя бы один шаг не прошёл.
func RunSmoke(ctx context.Context, client *Client) ([]SmokeStep, error) {
	steps := []SmokeStep{
		smokeHealth(ctx, client),
		smokeHome(ctx, client),
		smokeProducts(ctx, client),
		smokeOrder(ctx, client),
		smokeMetrics(ctx, client),
	}

	for _, s := range steps {
		if !s.OK {
			return steps, ErrSmokeFailed
		}
	}
	return steps, nil
}

func failedStep(name string, err error) SmokeStep {
	return SmokeStep{Name: name, Status: StatusCode(err), Error: err.Error()}
}

func smokeHealth(ctx context.Context, client *Client) SmokeStep {
	health, err := client.Health(ctx)
	if err != nil {
		return failedStep("health", err)
	}
	return SmokeStep{
		Name:   "health",
		OK:     health.Status == "healthy" && health.Uptime >= 0,
		Status: 200,
		Detail: fmt.Sprintf("uptime %.1fs, heap %s", health.Uptime, formatBytes(health.Memory["heapAlloc"])),
	}
}

func smokeHome(ctx context.Context, client *Client) SmokeStep {
	home, err := client.Home(ctx)
	if err != nil {
		return failedStep("home", err)
	}
	return SmokeStep{Name: "home", OK: true, Status: 200, Detail: "load time " + home.LoadTime}
}

func smokeProducts(ctx context.Context, client *Client) SmokeStep {
	page, err := client.Products(ctx)
	if err != nil {
		return failedStep("products", err)
	}
	return SmokeStep{
		Name:   "products",
		OK:     len(page.Products) == ExpectedProducts,
		Status: 200,
		Detail: fmt.Sprintf("%d products, load time %s", len(page.Products), page.LoadTime),
	}
}

func smokeOrder(ctx context.Context, client *Client) SmokeStep {
	order, status, err := client.CreateOrder(ctx, CreateOrderRequest{
		Items:         []OrderItem{defaultOrderItem},
		PaymentMethod: "credit_card",
	})
	if err != nil {
		return failedStep("order", err)
	}
	return SmokeStep{
		Name:   "order",
		OK:     order.Status == "completed" || order.Status == "failed",
		Status: status,
		Detail: fmt.Sprintf("%s %s total %s", order.ID, order.Status, formatMoney(order.Total)),
	}
}

func smokeMetrics(ctx context.Context, client *Client) SmokeStep {
	text, err := client.Metrics(ctx)
	if err != nil {
		return failedStep("metrics", err)
	}

	pageLoads := CountSamples(text, "ecommerce_page_loads_total")
	orders := CountSamples(text, "ecommerce_orders_total")
	return SmokeStep{
		Name:   "metrics",
		OK:     pageLoads > 0 && orders > 0,
		Status: 200,
		Detail: fmt.Sprintf("%d bytes, page loads %d, orders %d", len(text), pageLoads, orders),
	}
}

// NewSmokeCmd создаёт команду smoke-проверки.
func NewSmokeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Run a smoke test against every endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := RunSmoke(cmd.Context(), clientFn())

			headers := []string{"STEP", "OK", "STATUS", "DETAIL"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				detail := s.Detail
				if s.Error != "" {
					detail = s.Error
				}
				rows[i] = []string{s.Name, strconv.FormatBool(s.OK), strconv.Itoa(s.Status), detail}
			}

			out := outputFn()
			out.Print(headers, rows, steps)

			if err != nil {
				var failed []string
				for _, s := range steps {
					if !s.OK {
						failed = append(failed, s.Name)
					}
				}
				return fmt.Errorf("%w: %s", err, strings.Join(failed, ", "))
			}

			out.Success("All checks passed")
			return nil
		},
	}
}
