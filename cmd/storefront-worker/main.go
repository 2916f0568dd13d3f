// storefront-worker — выполняет оформленные заказы.
//
// Worker:
//   - Получает события заказов из RabbitMQ
//   - Продолжает trace, начатый в storefront-api
//   - Проводит заказ через этапы pick, pack, ship
//   - Повторяет временные ошибки с exponential backoff
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Storefront/internal/config"
	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
	"github.com/shaiso/Storefront/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics()
	opts := cfg.TelemetryOptions()
	opts.ServiceName = cfg.ServiceName + "-worker"

	tel, err := telemetry.Setup(ctx, opts, metrics.Registry())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown:", err)
		}
	}()

	logger := tel.Logger
	slog.SetDefault(logger)
	logger.Info("starting storefront-worker", "service", opts.ServiceName)

	// RabbitMQ
	mqURL := cfg.RabbitMQURL
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger, mq.ConnectionOptions{Name: opts.ServiceName})
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqConn.Close()

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}
	logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())

	sim := simulate.New(simulate.Config{
		Metrics: metrics,
		Tracer:  tel.Tracer(),
		Rand:    simulate.NewRand(cfg.RandSeed),
	})

	// Создаём worker
	w := worker.New(worker.Config{
		Conn:     mqConn,
		Registry: worker.NewRegistry(sim, cfg.CarrierFailureRate),
		Metrics:  metrics,
		Tracer:   tel.Tracer(),
		Logger:   logger,
	})

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// HTTP mux: /health + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(rw http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(rw, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		rw.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.WorkerAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.WorkerAddr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("storefront-worker stopped")
	return nil
}
