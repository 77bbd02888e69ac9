package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/shared"
)

// Allocator applies a validated amount to an adherent's open obligations.
type Allocator interface {
	ApplyPayment(ctx context.Context, adherentID int64, amount decimal.Decimal) (*ledger.Allocation, error)
}

// TxAllocator additionally applies a payment inside a caller-owned
// transaction, and invalidates derived reports once it has committed.
type TxAllocator interface {
	Allocator
	ApplyPaymentTx(ctx context.Context, tx pgx.Tx, adherentID int64, amount decimal.Decimal) (*ledger.Allocation, error)
	InvalidateReport(ctx context.Context)
}

// Service wraps payment business rules.
type Service struct {
	store     Store
	allocator Allocator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, allocator Allocator, logger *slog.Logger) *Service {
	return &Service{store: store, allocator: allocator, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Record registers a pending payment awaiting validation.
func (s *Service) Record(ctx context.Context, input CreateInput) (*Payment, error) {
	if input.AdherentID <= 0 {
		return nil, errors.New("payments: adherent required")
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("payments: amount must be positive")
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("payments: unknown method %q", input.Method)
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now().UTC()
	}
	return s.store.Create(ctx, uuid.NewString(), input)
}

// Validate finalises a pending payment: the record becomes immutable and
// its amount is applied to the adherent's open obligations. The guarded
// status flip ensures concurrent validations of one payment apply its
// money exactly once.
func (s *Service) Validate(ctx context.Context, id int64) (*ledger.Allocation, error) {
	payment, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != StatusPending {
		return nil, shared.ErrImmutable
	}
	now := s.now().UTC()

	txStore, okStore := s.store.(TxStore)
	txAlloc, okAlloc := s.allocator.(TxAllocator)
	if okStore && okAlloc {
		var alloc *ledger.Allocation
		err := txStore.RunTx(ctx, func(tx pgx.Tx, store Store) error {
			if err := store.TransitionStatus(ctx, id, StatusPending, StatusValidated, &now); err != nil {
				return err
			}
			a, err := txAlloc.ApplyPaymentTx(ctx, tx, payment.AdherentID, payment.Amount)
			if err != nil {
				return err
			}
			alloc = a
			return nil
		})
		if err != nil {
			s.logger.Error("validate payment",
				slog.Int64("payment_id", id), slog.Any("error", err))
			return nil, err
		}
		txAlloc.InvalidateReport(ctx)
		return alloc, nil
	}

	// Stores without transactions still get the compare-and-swap; a failed
	// allocation reopens the payment so validation can be retried.
	if err := s.store.TransitionStatus(ctx, id, StatusPending, StatusValidated, &now); err != nil {
		return nil, err
	}
	alloc, err := s.allocator.ApplyPayment(ctx, payment.AdherentID, payment.Amount)
	if err != nil {
		s.logger.Error("apply payment allocation",
			slog.Int64("payment_id", id), slog.Any("error", err))
		if rbErr := s.store.TransitionStatus(ctx, id, StatusValidated, StatusPending, nil); rbErr != nil {
			s.logger.Error("reopen payment after failed allocation",
				slog.Int64("payment_id", id), slog.Any("error", rbErr))
		}
		return nil, err
	}
	return alloc, nil
}

// Cancel corrects a payment's status. Validated payments cannot be
// cancelled; they are immutable records of money received.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	payment, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status != StatusPending {
		return shared.ErrImmutable
	}
	return s.store.TransitionStatus(ctx, id, StatusPending, StatusCancelled, nil)
}

// Get fetches a payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.store.Get(ctx, id)
}

// List returns payments matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Payment, error) {
	return s.store.List(ctx, filter)
}
