// Package scheduler обновляет фоновые gauge'и витрины по расписанию.
//
// Структура:
//   - scheduler.go — Scheduler (Start, Stop, задачи обновления)
//   - cron.go      — парсинг и валидация расписаний robfig/cron
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Metrics:             metrics,
//	    Logger:              logger,
//	    ActiveUsersSchedule: "@every 5s",
//	    InventorySchedule:   "@every 30s",
//	})
//	if err != nil {
//	    return err
//	}
//	sched.Start()
//	defer sched.Stop(ctx)
package scheduler
