package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DuesGenerator creates the cotisations of a period for active adherents.
type DuesGenerator interface {
	EnsureMonthlyDues(ctx context.Context, year, month int) (int, error)
}

// DuesGenerateJob processes TaskTypeDuesGenerate tasks. Generation is
// idempotent: existing dues for the period are left untouched.
type DuesGenerateJob struct {
	Generator DuesGenerator
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewDuesGenerateJob initialises the handler.
func NewDuesGenerateJob(generator DuesGenerator, logger *slog.Logger) *DuesGenerateJob {
	return &DuesGenerateJob{
		Generator: generator,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the dues generation.
func (j *DuesGenerateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Generator == nil {
		return errors.New("dues generate: handler not configured")
	}
	var payload DuesGeneratePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	now := j.now()
	if payload.Year == 0 {
		payload.Year = now.Year()
	}
	if payload.Month == 0 {
		payload.Month = int(now.Month())
	}

	logger := j.logger().With(slog.Int("year", payload.Year), slog.Int("month", payload.Month))
	logger.Info("starting dues generation")

	created, err := j.Generator.EnsureMonthlyDues(ctx, payload.Year, payload.Month)
	if err != nil {
		logger.Error("dues generation failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed dues generation",
		slog.Int("created", created),
		slog.Duration("duration", time.Since(now)),
	)
	return nil
}

func (j *DuesGenerateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDuesGenerate))
	}
	return slog.Default().With(slog.String("job", TaskTypeDuesGenerate))
}

func (j *DuesGenerateJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
