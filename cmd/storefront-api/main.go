// storefront-api — демо-сервис интернет-магазина: симулирует загрузку
// страниц и оформление заказов и отдаёт метрики, трейсы и логи.
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

	"github.com/shaiso/Storefront/internal/api"
	"github.com/shaiso/Storefront/internal/config"
	"github.com/shaiso/Storefront/internal/mq"
	"github.com/shaiso/Storefront/internal/scheduler"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront-api:", err)
		os.Exit(1)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Метрики и телеметрия
	metrics := telemetry.NewMetrics()
	tel, err := telemetry.Setup(ctx, cfg.TelemetryOptions(), metrics.Registry())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	logger := tel.Logger
	slog.SetDefault(logger)
	logger.Info("starting storefront-api",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"sinks", cfg.Sinks,
	)

	rnd := simulate.NewRand(cfg.RandSeed)
	sim := simulate.New(simulate.Config{
		Metrics: metrics,
		Tracer:  tel.Tracer(),
		Rand:    rnd,
	})

	// События заказов (опционально)
	var publisher api.OrderPublisher
	var conn *mq.Connection
	if cfg.RabbitMQURL != "" {
		conn, err = mq.NewConnection(cfg.RabbitMQURL, logger, mq.ConnectionOptions{
			Name:    cfg.ServiceName,
			Confirm: true,
		})
		if err != nil {
			logger.Warn("order events disabled, RabbitMQ unavailable", "error", err)
		} else if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Warn("order events disabled, topology setup failed", "error", err)
			conn.Close()
			conn = nil
		} else {
			publisher = mq.NewPublisher(conn, logger, mq.PublisherConfig{Metrics: metrics})
			logger.Info("order events enabled")
		}
	}

	// Фоновые gauge'ы
	sched, err := scheduler.New(scheduler.Config{
		Metrics:             metrics,
		Logger:              logger,
		Rand:                rnd,
		ActiveUsersSchedule: cfg.ActiveUsersSchedule,
		InventorySchedule:   cfg.InventorySchedule,
	})
	if err != nil {
		tel.Shutdown(context.Background())
		return err
	}
	sched.Start()

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Metrics:            metrics,
		Simulator:          sim,
		Catalog:            simulate.NewCatalog(cfg.RandSeed),
		Logger:             logger,
		Tracer:             tel.Tracer(),
		Publisher:          publisher,
		DeclinedStatus:     cfg.OrderDeclinedStatus,
		PaymentSuccessRate: cfg.PaymentSuccessRate,
		StartTime:          startTime,
		Version:            cfg.ServiceVersion,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("server error", "error", err)
	}

	// Graceful shutdown с таймаутом
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq close: %w", err))
		}
	}

	logger.Info("stopped", "uptime", time.Since(startTime).Round(time.Second))

	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}
