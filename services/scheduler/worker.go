package schedulersvc

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trezcool/soko/core"
)

type (
	// DueRunner runs the report schedules that are due.
	DueRunner interface {
		RunDue(ctx context.Context) (int, error)
	}

	// OverdueMarker flags the tasks whose due date has passed.
	OverdueMarker interface {
		MarkOverdue(ctx context.Context) (int64, error)
	}

	Worker struct {
		clock           clockwork.Clock
		reports         DueRunner
		tasks           OverdueMarker
		interval        time.Duration
		overdueInterval time.Duration
		logger          core.Logger
	}
)

func NewWorker(
	conf core.SchedulerConfig,
	reports DueRunner,
	tasks OverdueMarker,
	clock clockwork.Clock,
	logger core.Logger,
) *Worker {
	return &Worker{
		clock:           clock,
		reports:         reports,
		tasks:           tasks,
		interval:        conf.Interval,
		overdueInterval: conf.OverdueInterval,
		logger:          logger,
	}
}

// Run ticks until ctx is cancelled. Ticks are handled one at a time.
func (w *Worker) Run(ctx context.Context) {
	reportTicker := w.clock.NewTicker(w.interval)
	defer reportTicker.Stop()
	overdueTicker := w.clock.NewTicker(w.overdueInterval)
	defer overdueTicker.Stop()

	w.logger.Info("scheduler started", map[string]interface{}{
		"interval":         w.interval.String(),
		"overdue_interval": w.overdueInterval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("scheduler stopped")
			return
		case <-reportTicker.Chan():
			w.RunSchedules(ctx)
		case <-overdueTicker.Chan():
			w.MarkOverdue(ctx)
		}
	}
}

func (w *Worker) RunSchedules(ctx context.Context) int {
	n, err := w.reports.RunDue(ctx)
	if err != nil {
		w.logger.Error("running due schedules", err)
	}
	if n > 0 {
		w.logger.Info("scheduled reports delivered", map[string]interface{}{"count": n})
	}
	return n
}

func (w *Worker) MarkOverdue(ctx context.Context) int64 {
	n, err := w.tasks.MarkOverdue(ctx)
	if err != nil {
		w.logger.Error("marking overdue tasks", err)
	}
	if n > 0 {
		w.logger.Info("tasks marked overdue", map[string]interface{}{"count": n})
	}
	return n
}
