package expenses

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/amicale/amicale/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryExpenseStore struct {
	expenses   map[int64]*Expense
	categories map[int64]*Category
	nextID     int64
}

func newMemoryExpenseStore() *memoryExpenseStore {
	return &memoryExpenseStore{
		expenses:   make(map[int64]*Expense),
		categories: make(map[int64]*Category),
	}
}

func (s *memoryExpenseStore) Create(ctx context.Context, reference string, input CreateInput) (*Expense, error) {
	s.nextID++
	e := &Expense{
		ID:         s.nextID,
		Reference:  reference,
		Label:      input.Label,
		CategoryID: input.CategoryID,
		Amount:     input.Amount,
		SpentAt:    input.SpentAt,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *memoryExpenseStore) Get(ctx context.Context, id int64) (*Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *memoryExpenseStore) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	var out []Expense
	for _, e := range s.expenses {
		if filter.CategoryID != 0 && e.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *memoryExpenseStore) SetStatus(ctx context.Context, id int64, status Status, validatedAt *time.Time) error {
	e, ok := s.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Status = status
	if validatedAt != nil {
		e.ValidatedAt = validatedAt
	}
	return nil
}

func (s *memoryExpenseStore) CreateCategory(ctx context.Context, name string) (*Category, error) {
	s.nextID++
	c := &Category{ID: s.nextID, Name: name}
	s.categories[c.ID] = c
	return c, nil
}

func (s *memoryExpenseStore) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	for _, c := range s.categories {
		out = append(out, *c)
	}
	return out, nil
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func newTestService(store Store, cache *countingInvalidator) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), cache)
}

func TestRecordCreatesPendingExpense(t *testing.T) {
	svc := newTestService(newMemoryExpenseStore(), &countingInvalidator{})

	e, err := svc.Record(context.Background(), CreateInput{
		Label:      "Location salle AG",
		CategoryID: 1,
		Amount:     dec("120.00"),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, e.Status)
	require.NotEmpty(t, e.Reference)
	require.False(t, e.SpentAt.IsZero())
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemoryExpenseStore(), &countingInvalidator{})

	_, err := svc.Record(context.Background(), CreateInput{Label: "", CategoryID: 1, Amount: dec("10")})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), CreateInput{Label: "x", CategoryID: 0, Amount: dec("10")})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), CreateInput{Label: "x", CategoryID: 1, Amount: dec("-5")})
	require.Error(t, err)
}

func TestValidateBumpsReportCache(t *testing.T) {
	store := newMemoryExpenseStore()
	cache := &countingInvalidator{}
	svc := newTestService(store, cache)

	e, err := svc.Record(context.Background(), CreateInput{Label: "Achat fournitures", CategoryID: 2, Amount: dec("34.90")})
	require.NoError(t, err)

	require.NoError(t, svc.Validate(context.Background(), e.ID))
	require.Equal(t, 1, cache.bumps)

	stored, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, stored.Status)
	require.NotNil(t, stored.ValidatedAt)
}

func TestValidatedExpenseIsImmutable(t *testing.T) {
	store := newMemoryExpenseStore()
	svc := newTestService(store, &countingInvalidator{})

	e, err := svc.Record(context.Background(), CreateInput{Label: "Achat fournitures", CategoryID: 2, Amount: dec("34.90")})
	require.NoError(t, err)
	require.NoError(t, svc.Validate(context.Background(), e.ID))

	require.ErrorIs(t, svc.Validate(context.Background(), e.ID), shared.ErrImmutable)
	require.ErrorIs(t, svc.Cancel(context.Background(), e.ID), shared.ErrImmutable)
}

func TestCancelPendingExpense(t *testing.T) {
	store := newMemoryExpenseStore()
	cache := &countingInvalidator{}
	svc := newTestService(store, cache)

	e, err := svc.Record(context.Background(), CreateInput{Label: "Achat annule", CategoryID: 2, Amount: dec("15")})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), e.ID))
	stored, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)
	// Cancelled expenses never entered the report, nothing to invalidate.
	require.Zero(t, cache.bumps)
}

func TestCategories(t *testing.T) {
	svc := newTestService(newMemoryExpenseStore(), &countingInvalidator{})

	_, err := svc.AddCategory(context.Background(), "  ")
	require.Error(t, err)

	c, err := svc.AddCategory(context.Background(), "Evenements")
	require.NoError(t, err)
	require.Equal(t, "Evenements", c.Name)

	list, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}
