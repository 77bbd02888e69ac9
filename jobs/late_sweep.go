package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LateSweeper marks overdue cotisations late.
type LateSweeper interface {
	SweepLateDues(ctx context.Context) (int64, error)
}

// LateSweepJob processes TaskTypeLateSweep tasks.
type LateSweepJob struct {
	Sweeper LateSweeper
	Logger  *slog.Logger
}

// NewLateSweepJob initialises the handler.
func NewLateSweepJob(sweeper LateSweeper, logger *slog.Logger) *LateSweepJob {
	return &LateSweepJob{Sweeper: sweeper, Logger: logger}
}

// Handle executes the sweep.
func (j *LateSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("late sweep: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting late dues sweep")

	marked, err := j.Sweeper.SweepLateDues(ctx)
	if err != nil {
		logger.Error("late dues sweep failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed late dues sweep",
		slog.Int64("marked", marked),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LateSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeLateSweep))
	}
	return slog.Default().With(slog.String("job", TaskTypeLateSweep))
}
