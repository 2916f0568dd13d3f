package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Storefront/internal/mq"
)

// OrderEventLine — событие заказа в выводе команды events.
type OrderEventLine struct {
	RoutingKey string `json:"routing_key"`
	TraceID    string `json:"trace_id,omitempty"`
	mq.OrderEventPayload
}

// NewOrderEventLine собирает строку вывода из доставленного события.
func NewOrderEventLine(ctx context.Context, d *mq.Delivery, event mq.OrderEventPayload) OrderEventLine {
	line := OrderEventLine{
		RoutingKey:        string(d.RoutingKey()),
		OrderEventPayload: event,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		line.TraceID = sc.TraceID().String()
	}
	return line
}

// Format возвращает строку для табличного режима.
func (l OrderEventLine) Format() string {
	traceID := l.TraceID
	if traceID == "" {
		traceID = "-"
	}
	return fmt.Sprintf("%s  %-15s  %s  %10s  %-12s  %-12s  %s",
		l.CreatedAt.Format(time.RFC3339),
		l.RoutingKey,
		l.OrderID,
		formatMoney(l.Total),
		l.PaymentMethod,
		l.Category,
		traceID,
	)
}

// NewEventsCmd создаёт команду чтения событий заказов из RabbitMQ.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	var url string
	var limit int64
	var setup bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail order events from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			// Trace context из заголовков сообщений
			otel.SetTextMapPropagator(propagation.TraceContext{})

			conn, err := mq.NewConnection(url, logger, mq.ConnectionOptions{Name: "storefront-cli"})
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if setup {
				if err := mq.SetupTopology(ctx, conn); err != nil {
					return fmt.Errorf("setup topology: %w", err)
				}
			}

			var seen atomic.Int64
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:    string(mq.QueueOrderEvents),
				Prefetch: 10,
				Handler: func(ctx context.Context, d *mq.Delivery) error {
					event, err := d.OrderEvent()
					if err != nil {
						return err
					}

					line := NewOrderEventLine(ctx, d, event)
					if out.JSONMode() {
						out.JSONLine(line)
					} else {
						out.Line(line.Format())
					}

					if limit > 0 && seen.Add(1) >= limit {
						cancel()
					}
					return nil
				},
			})

			if !out.JSONMode() {
				out.Success(fmt.Sprintf("Waiting for events on %s (Ctrl+C to stop)...", mq.QueueOrderEvents))
			}

			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	defaultURL := os.Getenv("RABBITMQ_URL")
	if defaultURL == "" {
		defaultURL = mq.DefaultURL()
	}

	cmd.Flags().StringVar(&url, "rabbitmq-url", defaultURL, "RabbitMQ URL (env RABBITMQ_URL)")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Stop after N events (0 for no limit)")
	cmd.Flags().BoolVar(&setup, "setup", true, "Declare exchanges and queues before consuming")

	return cmd
}
