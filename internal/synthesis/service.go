package synthesis

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service computes the synthesis report.
type Service struct {
	source Source
	cache  *Cache
	logger *slog.Logger
	policy CreancesPolicy
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(source Source, cache *Cache, logger *slog.Logger, policy CreancesPolicy) *Service {
	if policy != CreancesFloorZero {
		policy = CreancesAllowNegative
	}
	return &Service{source: source, cache: cache, logger: logger, policy: policy, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Report returns the full synthesis, from cache when a fresh entry
// exists for the current version.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	key, err := s.cache.BuildKey(ctx, "synthese", "report")
	if err != nil {
		// Cache trouble never blocks the report.
		s.logger.Warn("synthesis cache key", slog.Any("error", err))
		report, err := s.compute(ctx)
		if err != nil {
			return nil, err
		}
		return report, nil
	}
	var report Report
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// compute fetches the seven independent collections concurrently, then
// runs the pure aggregation over the joined snapshot.
func (s *Service) compute(ctx context.Context) (*Report, error) {
	var ds Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Adherents, err = s.source.Adherents(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Debts, err = s.source.OpenDebts(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Dues, err = s.source.OpenDues(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Assistance, err = s.source.OpenAssistance(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Credits, err = s.source.AvailableCredits(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Payments, err = s.source.ValidatedPayments(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Expenses, err = s.source.ValidatedExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := BuildReport(ds, s.now().UTC(), s.policy)
	return &report, nil
}
