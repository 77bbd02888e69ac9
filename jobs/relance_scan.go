package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/amicale/amicale/internal/relance"
)

// RelanceScanner builds and enqueues reminders for late dues.
type RelanceScanner interface {
	Scan(ctx context.Context) ([]relance.Reminder, error)
}

// RelanceScanJob processes TaskTypeRelanceScan tasks.
type RelanceScanJob struct {
	Scanner RelanceScanner
	Logger  *slog.Logger
}

// NewRelanceScanJob initialises the handler.
func NewRelanceScanJob(scanner RelanceScanner, logger *slog.Logger) *RelanceScanJob {
	return &RelanceScanJob{Scanner: scanner, Logger: logger}
}

// Handle executes the scan.
func (j *RelanceScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("relance scan: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting relance scan")

	reminders, err := j.Scanner.Scan(ctx)
	if err != nil {
		logger.Error("relance scan failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed relance scan",
		slog.Int("reminders", len(reminders)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *RelanceScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeRelanceScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeRelanceScan))
}
