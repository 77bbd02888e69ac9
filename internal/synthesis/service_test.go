package synthesis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	dataset  Dataset
	failOn   string
	reads    atomic.Int64
	maxDelay time.Duration
}

func (s *memorySource) fetch(name string) error {
	s.reads.Add(1)
	if s.maxDelay > 0 {
		time.Sleep(s.maxDelay)
	}
	if s.failOn == name {
		return errors.New("read failed")
	}
	return nil
}

func (s *memorySource) Adherents(ctx context.Context) ([]AdherentRecord, error) {
	return s.dataset.Adherents, s.fetch("adherents")
}

func (s *memorySource) OpenDebts(ctx context.Context) ([]DebtRecord, error) {
	return s.dataset.Debts, s.fetch("debts")
}

func (s *memorySource) OpenDues(ctx context.Context) ([]DueRecord, error) {
	return s.dataset.Dues, s.fetch("dues")
}

func (s *memorySource) OpenAssistance(ctx context.Context) ([]AssistanceRecord, error) {
	return s.dataset.Assistance, s.fetch("assistance")
}

func (s *memorySource) AvailableCredits(ctx context.Context) ([]CreditRecord, error) {
	return s.dataset.Credits, s.fetch("credits")
}

func (s *memorySource) ValidatedPayments(ctx context.Context) ([]PaymentRecord, error) {
	return s.dataset.Payments, s.fetch("payments")
}

func (s *memorySource) ValidatedExpenses(ctx context.Context) ([]ExpenseRecord, error) {
	return s.dataset.Expenses, s.fetch("expenses")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redisCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl)
}

func TestReportJoinsAllReads(t *testing.T) {
	source := &memorySource{dataset: sampleDataset()}
	svc := NewService(source, nil, testLogger(), CreancesAllowNegative)
	svc.WithNow(func() time.Time { return fixedNow })

	report, err := svc.Report(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), source.reads.Load())
	require.Equal(t, 2, report.Stats.NombreAdherents)
	require.Len(t, report.SyntheseParAdherent, 2)
	require.Equal(t, "2025-06-15T10:00:00Z", report.DateGeneration)
}

func TestReportAbortsOnAnyReadFailure(t *testing.T) {
	for _, failOn := range []string{"adherents", "debts", "dues", "assistance", "credits", "payments", "expenses"} {
		source := &memorySource{dataset: sampleDataset(), failOn: failOn}
		svc := NewService(source, nil, testLogger(), CreancesAllowNegative)

		_, err := svc.Report(context.Background())
		require.Error(t, err, "expected failure when %s read fails", failOn)
	}
}

func TestReportUsesCacheUntilBump(t *testing.T) {
	cache := redisCache(t, time.Minute)
	source := &memorySource{dataset: sampleDataset()}
	svc := NewService(source, cache, testLogger(), CreancesAllowNegative)
	svc.WithNow(func() time.Time { return fixedNow })

	first, err := svc.Report(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), source.reads.Load())

	second, err := svc.Report(context.Background())
	require.NoError(t, err)
	// Served from cache, no further source reads.
	require.Equal(t, int64(7), source.reads.Load())
	require.Equal(t, first, second)

	require.NoError(t, cache.Bump(context.Background()))
	_, err = svc.Report(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(14), source.reads.Load())
}

func TestReportPolicyComesFromConfig(t *testing.T) {
	ds := Dataset{
		Adherents: []AdherentRecord{{ID: 1, FirstName: "A", LastName: "B"}},
		Credits:   []CreditRecord{{AdherentID: 1, Remaining: dec("50")}},
	}
	svc := NewService(&memorySource{dataset: ds}, nil, testLogger(), CreancesFloorZero)

	report, err := svc.Report(context.Background())
	require.NoError(t, err)
	requireDecEqual(t, "0", report.Stats.TotalCreances)
}
