package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/amicale/amicale/internal/money"
)

// TxBinder is implemented by stores that can run against an open
// transaction.
type TxBinder interface {
	WithTx(tx pgx.Tx) Store
}

// ReportInvalidator drops cached synthesis reports after a write.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Service wraps receivable business rules: debt creation, monthly dues
// generation, and the application of money to open obligations.
type Service struct {
	store  Store
	logger *slog.Logger
	cache  ReportInvalidator
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger, cache ReportInvalidator) *Service {
	return &Service{store: store, logger: logger, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// AddInitialDebt records an opening balance owed by an adherent.
func (s *Service) AddInitialDebt(ctx context.Context, adherentID int64, year int, amount decimal.Decimal) (*InitialDebt, error) {
	if !amount.IsPositive() {
		return nil, errors.New("ledger: debt amount must be positive")
	}
	debt, err := s.store.CreateInitialDebt(ctx, adherentID, year, amount)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return debt, nil
}

// AddDueType registers a recurring due type.
func (s *Service) AddDueType(ctx context.Context, name string, amount decimal.Decimal) (*DueType, error) {
	if name == "" {
		return nil, errors.New("ledger: due type name required")
	}
	if !amount.IsPositive() {
		return nil, errors.New("ledger: due type amount must be positive")
	}
	return s.store.CreateDueType(ctx, name, amount)
}

// DueTypes lists registered due types.
func (s *Service) DueTypes(ctx context.Context) ([]DueType, error) {
	return s.store.ListDueTypes(ctx)
}

// EnsureMonthlyDues creates the dues of the given period for every active
// adherent and every due type, skipping periods already generated. It
// returns the number of dues created. Safe to run repeatedly.
func (s *Service) EnsureMonthlyDues(ctx context.Context, year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("ledger: invalid month %d", month)
	}
	adherentIDs, err := s.store.ListActiveAdherentIDs(ctx)
	if err != nil {
		return 0, err
	}
	types, err := s.store.ListDueTypes(ctx)
	if err != nil {
		return 0, err
	}

	// Dues fall due on the 10th of their month.
	dueDate := time.Date(year, time.Month(month), 10, 0, 0, 0, 0, time.UTC)
	now := s.now()

	created := 0
	for _, adherentID := range adherentIDs {
		for _, dt := range types {
			exists, err := s.store.DueExists(ctx, adherentID, dt.ID, year, month)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}
			due := Due{
				AdherentID: adherentID,
				DueTypeID:  dt.ID,
				Year:       year,
				Month:      month,
				Expected:   dt.Amount,
				Paid:       decimal.Zero,
				Remaining:  dt.Amount,
				Status:     DeriveDueStatus(dt.Amount, decimal.Zero, dueDate, now),
				DueDate:    dueDate,
			}
			if _, err := s.store.CreateDue(ctx, due); err != nil {
				return created, err
			}
			created++
		}
	}
	if created > 0 {
		s.invalidate(ctx)
	}
	return created, nil
}

// ApplyPayment distributes an amount over the adherent's open obligations:
// initial debts oldest year first, then dues by period, then assistance by
// event date. Any leftover becomes an available avoir.
func (s *Service) ApplyPayment(ctx context.Context, adherentID int64, amount decimal.Decimal) (*Allocation, error) {
	alloc, err := s.applyPayment(ctx, s.store, adherentID, amount)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return alloc, nil
}

// ApplyPaymentTx runs the allocation against the caller's transaction so
// the status flip that triggered it and the ledger writes commit or roll
// back together. The report cache is left alone here; callers invalidate
// through InvalidateReport once the transaction commits.
func (s *Service) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, adherentID int64, amount decimal.Decimal) (*Allocation, error) {
	store := s.store
	if binder, ok := s.store.(TxBinder); ok && tx != nil {
		store = binder.WithTx(tx)
	}
	return s.applyPayment(ctx, store, adherentID, amount)
}

// InvalidateReport drops cached synthesis reports.
func (s *Service) InvalidateReport(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) applyPayment(ctx context.Context, store Store, adherentID int64, amount decimal.Decimal) (*Allocation, error) {
	if !amount.IsPositive() {
		return nil, errors.New("ledger: payment amount must be positive")
	}

	alloc := &Allocation{AdherentID: adherentID, Applied: decimal.Zero, Leftover: decimal.Zero}
	left := amount
	now := s.now()

	debts, err := store.ListOpenDebts(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	for _, d := range debts {
		if !left.IsPositive() {
			break
		}
		applied, newPaid, newRemaining := applyAmount(d.Amount, d.Paid, left)
		if applied.IsZero() {
			continue
		}
		if err := store.UpdateDebtAmounts(ctx, d.ID, newPaid, newRemaining); err != nil {
			return nil, err
		}
		left = left.Sub(applied)
		alloc.Applied = alloc.Applied.Add(applied)
		alloc.Lines = append(alloc.Lines, AllocationLine{Kind: "detteInitiale", TargetID: d.ID, Applied: applied, Remaining: newRemaining})
	}

	dues, err := store.ListOpenDues(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	for _, d := range dues {
		if !left.IsPositive() {
			break
		}
		applied, newPaid, newRemaining := applyAmount(d.Expected, d.Paid, left)
		if applied.IsZero() {
			continue
		}
		status := DeriveDueStatus(d.Expected, newPaid, d.DueDate, now)
		if err := store.UpdateDueAmounts(ctx, d.ID, newPaid, newRemaining, status); err != nil {
			return nil, err
		}
		left = left.Sub(applied)
		alloc.Applied = alloc.Applied.Add(applied)
		alloc.Lines = append(alloc.Lines, AllocationLine{Kind: "cotisation", TargetID: d.ID, Applied: applied, Remaining: newRemaining})
	}

	assists, err := store.ListOpenAssistance(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	for _, a := range assists {
		if !left.IsPositive() {
			break
		}
		applied, newPaid, newRemaining := applyAmount(a.Amount, a.Paid, left)
		if applied.IsZero() {
			continue
		}
		status := a.Status
		if newRemaining.IsZero() {
			status = AssistanceSettled
		}
		if err := store.UpdateAssistanceAmounts(ctx, a.ID, newPaid, newRemaining, status); err != nil {
			return nil, err
		}
		left = left.Sub(applied)
		alloc.Applied = alloc.Applied.Add(applied)
		alloc.Lines = append(alloc.Lines, AllocationLine{Kind: "assistance", TargetID: a.ID, Applied: applied, Remaining: newRemaining})
	}

	if left.IsPositive() {
		credit, err := store.CreateCredit(ctx, adherentID, left, "excedent de paiement")
		if err != nil {
			return nil, err
		}
		alloc.Leftover = left
		alloc.CreditID = credit.ID
	}

	return alloc, nil
}

// ApplyCredits nets an adherent's available avoirs against their open
// obligations, consuming credits oldest first.
func (s *Service) ApplyCredits(ctx context.Context, adherentID int64) (*Allocation, error) {
	credits, err := s.store.ListAvailableCredits(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Remaining)
	}
	if !total.IsPositive() {
		return &Allocation{AdherentID: adherentID, Applied: decimal.Zero, Leftover: decimal.Zero}, nil
	}

	alloc, err := s.ApplyPayment(ctx, adherentID, total)
	if err != nil {
		return nil, err
	}

	// The leftover credit created by ApplyPayment replaces the consumed
	// ones; mark the originals exhausted.
	for _, c := range credits {
		if err := s.store.UpdateCreditAmounts(ctx, c.ID, c.Amount, decimal.Zero, CreditExhausted); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx)
	return alloc, nil
}

// GrantCredit records an avoir for an adherent.
func (s *Service) GrantCredit(ctx context.Context, adherentID int64, amount decimal.Decimal, reason string) (*Credit, error) {
	if !amount.IsPositive() {
		return nil, errors.New("ledger: credit amount must be positive")
	}
	credit, err := s.store.CreateCredit(ctx, adherentID, amount, reason)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return credit, nil
}

// RequestAssistance opens an assistance obligation linked to an event.
func (s *Service) RequestAssistance(ctx context.Context, adherentID, eventID int64, amount decimal.Decimal) (*Assistance, error) {
	if !amount.IsPositive() {
		return nil, errors.New("ledger: assistance amount must be positive")
	}
	assistance, err := s.store.CreateAssistance(ctx, adherentID, eventID, amount)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return assistance, nil
}

// CancelAssistance excludes an assistance from all balances.
func (s *Service) CancelAssistance(ctx context.Context, id int64) error {
	if err := s.store.CancelAssistance(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SweepLateDues flips pending dues past their due date to late.
func (s *Service) SweepLateDues(ctx context.Context) (int64, error) {
	n, err := s.store.MarkLateDues(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// AdherentLedger groups an adherent's open positions for display.
type AdherentLedger struct {
	Debts      []InitialDebt
	Dues       []Due
	Assistance []Assistance
	Credits    []Credit
}

// OpenPositions returns everything an adherent currently owes or holds.
func (s *Service) OpenPositions(ctx context.Context, adherentID int64) (*AdherentLedger, error) {
	debts, err := s.store.ListOpenDebts(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	dues, err := s.store.ListOpenDues(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	assists, err := s.store.ListOpenAssistance(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	credits, err := s.store.ListAvailableCredits(ctx, adherentID)
	if err != nil {
		return nil, err
	}
	return &AdherentLedger{Debts: debts, Dues: dues, Assistance: assists, Credits: credits}, nil
}

// TotalOwed sums everything an adherent still owes, net of credits,
// floored at zero.
func (s *Service) TotalOwed(ctx context.Context, adherentID int64) (decimal.Decimal, error) {
	ledger, err := s.OpenPositions(ctx, adherentID)
	if err != nil {
		return decimal.Zero, err
	}
	owed := decimal.Zero
	for _, d := range ledger.Debts {
		owed = owed.Add(d.Remaining)
	}
	for _, d := range ledger.Dues {
		owed = owed.Add(d.Remaining)
	}
	for _, a := range ledger.Assistance {
		owed = owed.Add(a.Remaining)
	}
	for _, c := range ledger.Credits {
		owed = owed.Sub(c.Remaining)
	}
	return money.NonNegative(owed), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate synthesis cache", slog.Any("error", err))
	}
}
