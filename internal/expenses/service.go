package expenses

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/shared"
)

// Service wraps expense business rules.
type Service struct {
	store  Store
	logger *slog.Logger
	cache  ledger.ReportInvalidator
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger, cache ledger.ReportInvalidator) *Service {
	return &Service{store: store, logger: logger, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Record registers a pending expense awaiting validation.
func (s *Service) Record(ctx context.Context, input CreateInput) (*Expense, error) {
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, errors.New("expenses: label required")
	}
	if input.CategoryID <= 0 {
		return nil, errors.New("expenses: category required")
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("expenses: amount must be positive")
	}
	if input.SpentAt.IsZero() {
		input.SpentAt = s.now().UTC()
	}
	return s.store.Create(ctx, uuid.NewString(), input)
}

// Validate finalises a pending expense; the record becomes immutable.
func (s *Service) Validate(ctx context.Context, id int64) error {
	expense, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if expense.Status != StatusPending {
		return shared.ErrImmutable
	}
	now := s.now().UTC()
	if err := s.store.SetStatus(ctx, id, StatusValidated, &now); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Cancel corrects a pending expense's status. Validated expenses are
// immutable.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	expense, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if expense.Status != StatusPending {
		return shared.ErrImmutable
	}
	return s.store.SetStatus(ctx, id, StatusCancelled, nil)
}

// Get fetches an expense.
func (s *Service) Get(ctx context.Context, id int64) (*Expense, error) {
	return s.store.Get(ctx, id)
}

// List returns expenses matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	return s.store.List(ctx, filter)
}

// AddCategory registers an expense category.
func (s *Service) AddCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("expenses: category name required")
	}
	return s.store.CreateCategory(ctx, name)
}

// Categories lists expense categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate synthesis cache", slog.Any("error", err))
	}
}
