package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Storefront/internal/domain"
	"github.com/shaiso/Storefront/internal/simulate"
	"github.com/shaiso/Storefront/internal/telemetry"
)

// Расписания по умолчанию.
const (
	DefaultActiveUsersSchedule = "@every 5s"
	DefaultInventorySchedule   = "@every 30s"
)

// Диапазоны симулированных значений gauge'ей (включительно).
const (
	minActiveUsers = 50
	maxActiveUsers = 549
	minInventory   = 100
	maxInventory   = 1099
)

// Scheduler периодически обновляет gauge'и активных пользователей и остатков.
//
// Каждое обновление заменяет значение целиком, поэтому задачам
// не нужна синхронизация с обработчиками запросов.
type Scheduler struct {
	cron       *cron.Cron
	metrics    *telemetry.Metrics
	rand       simulate.Rand
	logger     *slog.Logger
	categories []string

	startOnce sync.Once
}

// Config — конфигурация Scheduler.
type Config struct {
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Rand (опционально; если nil — math/rand/v2)
	Rand simulate.Rand

	// ActiveUsersSchedule (default: @every 5s)
	ActiveUsersSchedule string

	// InventorySchedule (default: @every 30s)
	InventorySchedule string

	// Categories для остатков (default: domain.InventoryCategories)
	Categories []string
}

// New создаёт Scheduler и регистрирует задачи. Расписания валидируются сразу.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := cfg.Rand
	if r == nil {
		r = simulate.NewRand(0)
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = domain.InventoryCategories
	}

	activeSpec := cfg.ActiveUsersSchedule
	if activeSpec == "" {
		activeSpec = DefaultActiveUsersSchedule
	}
	inventorySpec := cfg.InventorySchedule
	if inventorySpec == "" {
		inventorySpec = DefaultInventorySchedule
	}

	for _, spec := range []string{activeSpec, inventorySpec} {
		if err := ValidateSchedule(spec); err != nil {
			return nil, err
		}
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		metrics:    cfg.Metrics,
		rand:       r,
		logger:     logger,
		categories: categories,
	}

	if _, err := s.cron.AddFunc(activeSpec, s.UpdateActiveUsers); err != nil {
		return nil, fmt.Errorf("add active users job: %w", err)
	}
	if _, err := s.cron.AddFunc(inventorySpec, s.UpdateInventory); err != nil {
		return nil, fmt.Errorf("add inventory job: %w", err)
	}

	logger.Debug("scheduler configured",
		"active_users_schedule", activeSpec,
		"inventory_schedule", inventorySpec,
		"categories", len(categories),
	)

	return s, nil
}

// Start заполняет остатки начальными значениями и запускает расписание.
// Повторные вызовы игнорируются.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.UpdateInventory()
		s.cron.Start()
		s.logger.Info("scheduler started")
	})
}

// Stop останавливает расписание и ждёт завершения запущенных задач
// или отмены ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// UpdateActiveUsers выставляет новое число активных пользователей.
func (s *Scheduler) UpdateActiveUsers() {
	n := simulate.IntRange(s.rand, minActiveUsers, maxActiveUsers)
	s.metrics.SetActiveUsers(n)
	s.logger.Debug("active users updated", "value", n)
}

// UpdateInventory выставляет новые остатки для всех категорий.
func (s *Scheduler) UpdateInventory() {
	for _, category := range s.categories {
		level := simulate.IntRange(s.rand, minInventory, maxInventory)
		s.metrics.SetInventory(category, level)
	}
	s.logger.Debug("inventory updated", "categories", len(s.categories))
}
