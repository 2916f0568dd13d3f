package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/simulate"
)

// Эндпоинты генератора нагрузки.
const (
	EndpointHome     = "home"
	EndpointProducts = "products"
	EndpointOrders   = "orders"
)

// LoadOptions — параметры генератора нагрузки.
type LoadOptions struct {
	Duration    time.Duration
	Concurrency int

	// OrderRatio — доля запросов POST /orders, остальное поровну / и /products.
	OrderRatio float64

	// Seed для выбора запросов и генерации заказов (0 — случайный).
	Seed uint64
}

// EndpointStats — статистика по одному эндпоинту.
type EndpointStats struct {
	Endpoint     string        `json:"endpoint"`
	Requests     int           `json:"requests"`
	Errors       int           `json:"errors"`
	Statuses     map[int]int   `json:"statuses"`
	TotalLatency time.Duration `json:"-"`
}

// AvgLatency возвращает среднюю задержку ответа.
func (s EndpointStats) AvgLatency() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Requests)
}

// LoadReport — итог прогона нагрузки.
type LoadReport struct {
	Duration  time.Duration   `json:"duration"`
	Endpoints []EndpointStats `json:"endpoints"`
}

// Total возвращает общее число запросов.
func (r *LoadReport) Total() int {
	var n int
	for _, s := range r.Endpoints {
		n += s.Requests
	}
	return n
}

// loadRecorder собирает статистику из воркеров.
type loadRecorder struct {
	mu    sync.Mutex
	stats map[string]*EndpointStats
}

func (r *loadRecorder) record(endpoint string, status int, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[endpoint]
	if !ok {
		s = &EndpointStats{Endpoint: endpoint, Statuses: map[int]int{}}
		r.stats[endpoint] = s
	}

	s.Requests++
	s.TotalLatency += latency
	if status != 0 {
		s.Statuses[status]++
	}
	if err != nil && status == 0 {
		s.Errors++
	}
}

func (r *loadRecorder) report(elapsed time.Duration) *LoadReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &LoadReport{Duration: elapsed}
	for _, name := range slices.Sorted(maps.Keys(r.stats)) {
		report.Endpoints = append(report.Endpoints, *r.stats[name])
	}
	return report
}

// RunLoad генерирует трафик Concurrency воркерами в течение Duration.
//
// Ошибки отдельных запросов учитываются в отчёте и не останавливают прогон.
func RunLoad(ctx context.Context, client *Client, opts LoadOptions) (*LoadReport, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("load duration must be positive")
	}
	if opts.OrderRatio < 0 || opts.OrderRatio > 1 {
		return nil, fmt.Errorf("order ratio must be in [0, 1]")
	}

	rnd := simulate.NewRand(opts.Seed)
	catalog := simulate.NewCatalog(opts.Seed)
	rec := &loadRecorder{stats: map[string]*EndpointStats{}}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	for range opts.Concurrency {
		g.Go(func() error {
			for ctx.Err() == nil {
				endpoint, status, latency, err := loadStep(ctx, client, rnd, catalog, opts.OrderRatio)
				if ctx.Err() != nil {
					// Запрос оборван концом прогона
					return nil
				}
				rec.record(endpoint, status, latency, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return rec.report(time.Since(start)), err
	}
	return rec.report(time.Since(start)), nil
}

// loadStep выполняет один случайный запрос.
func loadStep(ctx context.Context, client *Client, rnd simulate.Rand, catalog *simulate.Catalog, orderRatio float64) (string, int, time.Duration, error) {
	start := time.Now()

	switch {
	case rnd.Float64() < orderRatio:
		_, status, err := client.CreateOrder(ctx, randomOrder(rnd, catalog))
		return EndpointOrders, status, time.Since(start), err

	case rnd.IntN(2) == 0:
		_, err := client.Home(ctx)
		return EndpointHome, statusOf(err, 200), time.Since(start), err

	default:
		_, err := client.Products(ctx)
		return EndpointProducts, statusOf(err, 200), time.Since(start), err
	}
}

func statusOf(err error, ok int) int {
	if err == nil {
		return ok
	}
	return StatusCode(err)
}

// randomOrder собирает заказ из 1..3 сгенерированных товаров.
func randomOrder(rnd simulate.Rand, catalog *simulate.Catalog) CreateOrderRequest {
	products := catalog.Products(simulate.IntRange(rnd, 1, 3))

	items := make([]OrderItem, len(products))
	for i, p := range products {
		items[i] = OrderItem{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: simulate.IntRange(rnd, 1, 3),
			Category: domain.InventoryCategories[rnd.IntN(len(domain.InventoryCategories))],
		}
	}

	methods := []string{"credit_card", "paypal", "apple_pay"}
	return CreateOrderRequest{
		Items:         items,
		PaymentMethod: methods[rnd.IntN(len(methods))],
	}
}

// NewLoadCmd создаёт команду генерации нагрузки.
func NewLoadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts LoadOptions

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate concurrent traffic against the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			if !out.JSONMode() {
				out.Success(fmt.Sprintf("Generating load for %s with %d workers...", opts.Duration, opts.Concurrency))
			}

			report, err := RunLoad(cmd.Context(), clientFn(), opts)
			if err != nil {
				return err
			}

			headers := []string{"ENDPOINT", "REQUESTS", "ERRORS", "STATUSES", "AVG_LATENCY"}
			rows := make([][]string, len(report.Endpoints))
			for i, s := range report.Endpoints {
				rows[i] = []string{
					s.Endpoint,
					strconv.Itoa(s.Requests),
					strconv.Itoa(s.Errors),
					formatStatuses(s.Statuses),
					s.AvgLatency().Round(time.Millisecond).String(),
				}
			}

			out.Print(headers, rows, report)
			if !out.JSONMode() {
				out.Success(fmt.Sprintf("%d requests in %s", report.Total(), report.Duration.Round(time.Millisecond)))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 30*time.Second, "How long to generate traffic")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Number of concurrent workers")
	cmd.Flags().Float64Var(&opts.OrderRatio, "order-ratio", 0.3, "Share of requests that place orders")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (0 for random)")

	return cmd
}

func formatStatuses(statuses map[int]int) string {
	parts := make([]string, 0, len(statuses))
	for _, code := range slices.Sorted(maps.Keys(statuses)) {
		parts = append(parts, fmt.Sprintf("%d:%d", code, statuses[code]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
