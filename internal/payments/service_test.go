package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryPaymentStore struct {
	mu       sync.Mutex
	payments map[int64]*Payment
	nextID   int64
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{payments: make(map[int64]*Payment)}
}

func (s *memoryPaymentStore) Create(ctx context.Context, reference string, input CreateInput) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := &Payment{
		ID:         s.nextID,
		Reference:  reference,
		AdherentID: input.AdherentID,
		Amount:     input.Amount,
		Method:     input.Method,
		PaidAt:     input.PaidAt,
		Status:     StatusPending,
		Note:       input.Note,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.payments[p.ID] = p
	return p, nil
}

func (s *memoryPaymentStore) Get(ctx context.Context, id int64) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *memoryPaymentStore) List(ctx context.Context, filter ListFilter) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.payments {
		if filter.AdherentID != 0 && p.AdherentID != filter.AdherentID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *memoryPaymentStore) TransitionStatus(ctx context.Context, id int64, from, to Status, validatedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return shared.ErrNotFound
	}
	if p.Status != from {
		return shared.ErrImmutable
	}
	p.Status = to
	if to == StatusValidated {
		if validatedAt != nil {
			p.ValidatedAt = validatedAt
		}
	} else {
		p.ValidatedAt = nil
	}
	return nil
}

type recordingAllocator struct {
	mu    sync.Mutex
	fails int
	calls []struct {
		adherentID int64
		amount     decimal.Decimal
	}
}

func (a *recordingAllocator) ApplyPayment(ctx context.Context, adherentID int64, amount decimal.Decimal) (*ledger.Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fails > 0 {
		a.fails--
		return nil, errors.New("ledger unavailable")
	}
	a.calls = append(a.calls, struct {
		adherentID int64
		amount     decimal.Decimal
	}{adherentID, amount})
	return &ledger.Allocation{AdherentID: adherentID, Applied: amount, Leftover: decimal.Zero}, nil
}

func newTestService(store Store, alloc Allocator) *Service {
	return NewService(store, alloc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordCreatesPendingPayment(t *testing.T) {
	store := newMemoryPaymentStore()
	svc := newTestService(store, &recordingAllocator{})

	p, err := svc.Record(context.Background(), CreateInput{
		AdherentID: 3,
		Amount:     dec("25.50"),
		Method:     MethodCheque,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.NotEmpty(t, p.Reference)
	require.False(t, p.PaidAt.IsZero())
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemoryPaymentStore(), &recordingAllocator{})

	_, err := svc.Record(context.Background(), CreateInput{AdherentID: 0, Amount: dec("10"), Method: MethodCash})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), CreateInput{AdherentID: 1, Amount: dec("0"), Method: MethodCash})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), CreateInput{AdherentID: 1, Amount: dec("10"), Method: Method("BITCOIN")})
	require.Error(t, err)
}

func TestValidateAppliesAllocation(t *testing.T) {
	store := newMemoryPaymentStore()
	allocator := &recordingAllocator{}
	svc := newTestService(store, allocator)

	p, err := svc.Record(context.Background(), CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)

	alloc, err := svc.Validate(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, alloc.Applied.Equal(dec("40")))

	require.Len(t, allocator.calls, 1)
	require.Equal(t, int64(3), allocator.calls[0].adherentID)
	require.True(t, allocator.calls[0].amount.Equal(dec("40")))

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, stored.Status)
	require.NotNil(t, stored.ValidatedAt)
}

func TestValidateTwiceFails(t *testing.T) {
	store := newMemoryPaymentStore()
	svc := newTestService(store, &recordingAllocator{})

	p, err := svc.Record(context.Background(), CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

// gatedPaymentStore holds every Get until all expected readers have read,
// so concurrent validations observe the same pending snapshot.
type gatedPaymentStore struct {
	*memoryPaymentStore
	gate *sync.WaitGroup
}

func (s *gatedPaymentStore) Get(ctx context.Context, id int64) (*Payment, error) {
	p, err := s.memoryPaymentStore.Get(ctx, id)
	s.gate.Done()
	s.gate.Wait()
	return p, err
}

func TestValidateConcurrentAppliesOnce(t *testing.T) {
	store := newMemoryPaymentStore()
	allocator := &recordingAllocator{}
	var gate sync.WaitGroup
	gate.Add(2)
	svc := newTestService(&gatedPaymentStore{memoryPaymentStore: store, gate: &gate}, allocator)

	p, err := store.Create(context.Background(), "ref-1", CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)

	// Both goroutines see the payment pending before either writes; the
	// guarded transition lets exactly one of them apply the money.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Validate(context.Background(), p.ID)
			errs <- err
		}()
	}
	first, second := <-errs, <-errs

	if first == nil {
		require.ErrorIs(t, second, shared.ErrImmutable)
	} else {
		require.ErrorIs(t, first, shared.ErrImmutable)
		require.NoError(t, second)
	}
	require.Len(t, allocator.calls, 1)
	require.True(t, allocator.calls[0].amount.Equal(dec("40")))

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, stored.Status)
}

func TestValidateReopensPaymentWhenAllocationFails(t *testing.T) {
	store := newMemoryPaymentStore()
	allocator := &recordingAllocator{fails: 1}
	svc := newTestService(store, allocator)

	p, err := svc.Record(context.Background(), CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), p.ID)
	require.Error(t, err)

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Nil(t, stored.ValidatedAt)

	// Once the ledger recovers, validation goes through.
	alloc, err := svc.Validate(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, alloc.Applied.Equal(dec("40")))
}

func TestCancelValidatedPaymentFails(t *testing.T) {
	store := newMemoryPaymentStore()
	svc := newTestService(store, &recordingAllocator{})

	p, err := svc.Record(context.Background(), CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), p.ID)
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestCancelPendingPayment(t *testing.T) {
	store := newMemoryPaymentStore()
	allocator := &recordingAllocator{}
	svc := newTestService(store, allocator)

	p, err := svc.Record(context.Background(), CreateInput{AdherentID: 3, Amount: dec("40"), Method: MethodCash})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), p.ID))
	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)
	// A cancelled payment never reaches the ledger.
	require.Empty(t, allocator.calls)
}
