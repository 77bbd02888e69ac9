package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/amicale/amicale/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryLedgerStore struct {
	debts      map[int64]*InitialDebt
	dueTypes   map[int64]*DueType
	dues       map[int64]*Due
	assists    map[int64]*Assistance
	credits    map[int64]*Credit
	activeIDs  []int64
	eventDates map[int64]time.Time
	nextID     int64
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{
		debts:      make(map[int64]*InitialDebt),
		dueTypes:   make(map[int64]*DueType),
		dues:       make(map[int64]*Due),
		assists:    make(map[int64]*Assistance),
		credits:    make(map[int64]*Credit),
		eventDates: make(map[int64]time.Time),
	}
}

func (s *memoryLedgerStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryLedgerStore) CreateInitialDebt(ctx context.Context, adherentID int64, year int, amount decimal.Decimal) (*InitialDebt, error) {
	d := &InitialDebt{ID: s.id(), AdherentID: adherentID, Year: year, Amount: amount, Paid: decimal.Zero, Remaining: amount}
	s.debts[d.ID] = d
	return d, nil
}

func (s *memoryLedgerStore) ListOpenDebts(ctx context.Context, adherentID int64) ([]InitialDebt, error) {
	var out []InitialDebt
	for _, d := range s.debts {
		if d.Remaining.IsPositive() && (adherentID == 0 || d.AdherentID == adherentID) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryLedgerStore) UpdateDebtAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal) error {
	d, ok := s.debts[id]
	if !ok {
		return shared.ErrNotFound
	}
	d.Paid = paid
	d.Remaining = remaining
	return nil
}

func (s *memoryLedgerStore) CreateDueType(ctx context.Context, name string, amount decimal.Decimal) (*DueType, error) {
	dt := &DueType{ID: s.id(), Name: name, Amount: amount}
	s.dueTypes[dt.ID] = dt
	return dt, nil
}

func (s *memoryLedgerStore) ListDueTypes(ctx context.Context) ([]DueType, error) {
	var out []DueType
	for _, dt := range s.dueTypes {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryLedgerStore) CreateDue(ctx context.Context, due Due) (*Due, error) {
	due.ID = s.id()
	copied := due
	s.dues[due.ID] = &copied
	return &due, nil
}

func (s *memoryLedgerStore) DueExists(ctx context.Context, adherentID, dueTypeID int64, year, month int) (bool, error) {
	for _, d := range s.dues {
		if d.AdherentID == adherentID && d.DueTypeID == dueTypeID && d.Year == year && d.Month == month {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryLedgerStore) ListOpenDues(ctx context.Context, adherentID int64) ([]Due, error) {
	var out []Due
	for _, d := range s.dues {
		if d.Status == DueStatusPaid {
			continue
		}
		if adherentID == 0 || d.AdherentID == adherentID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryLedgerStore) UpdateDueAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status DueStatus) error {
	d, ok := s.dues[id]
	if !ok {
		return shared.ErrNotFound
	}
	d.Paid = paid
	d.Remaining = remaining
	d.Status = status
	return nil
}

func (s *memoryLedgerStore) MarkLateDues(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, d := range s.dues {
		if d.Status == DueStatusPending && d.DueDate.Before(now) {
			d.Status = DueStatusLate
			n++
		}
	}
	return n, nil
}

func (s *memoryLedgerStore) CreateAssistance(ctx context.Context, adherentID, eventID int64, amount decimal.Decimal) (*Assistance, error) {
	a := &Assistance{
		ID:         s.id(),
		AdherentID: adherentID,
		EventID:    eventID,
		EventDate:  s.eventDates[eventID],
		Amount:     amount,
		Paid:       decimal.Zero,
		Remaining:  amount,
		Status:     AssistanceOpen,
	}
	s.assists[a.ID] = a
	return a, nil
}

func (s *memoryLedgerStore) ListOpenAssistance(ctx context.Context, adherentID int64) ([]Assistance, error) {
	var out []Assistance
	for _, a := range s.assists {
		if a.Status == AssistanceCancelled || !a.Remaining.IsPositive() {
			continue
		}
		if adherentID == 0 || a.AdherentID == adherentID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryLedgerStore) UpdateAssistanceAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status AssistanceStatus) error {
	a, ok := s.assists[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Paid = paid
	a.Remaining = remaining
	a.Status = status
	return nil
}

func (s *memoryLedgerStore) CancelAssistance(ctx context.Context, id int64) error {
	a, ok := s.assists[id]
	if !ok || a.Status == AssistanceCancelled {
		return shared.ErrNotFound
	}
	a.Status = AssistanceCancelled
	return nil
}

func (s *memoryLedgerStore) CreateCredit(ctx context.Context, adherentID int64, amount decimal.Decimal, reason string) (*Credit, error) {
	c := &Credit{ID: s.id(), AdherentID: adherentID, Amount: amount, Used: decimal.Zero, Remaining: amount, Status: CreditAvailable, Reason: reason}
	s.credits[c.ID] = c
	return c, nil
}

func (s *memoryLedgerStore) ListAvailableCredits(ctx context.Context, adherentID int64) ([]Credit, error) {
	var out []Credit
	for _, c := range s.credits {
		if c.Status != CreditAvailable || !c.Remaining.IsPositive() {
			continue
		}
		if adherentID == 0 || c.AdherentID == adherentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryLedgerStore) UpdateCreditAmounts(ctx context.Context, id int64, used, remaining decimal.Decimal, status CreditStatus) error {
	c, ok := s.credits[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.Used = used
	c.Remaining = remaining
	c.Status = status
	return nil
}

func (s *memoryLedgerStore) ListActiveAdherentIDs(ctx context.Context) ([]int64, error) {
	return s.activeIDs, nil
}

func newTestService(store Store) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func TestDeriveDueStatus(t *testing.T) {
	due := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	before := due.AddDate(0, 0, -5)
	after := due.AddDate(0, 0, 5)

	require.Equal(t, DueStatusPaid, DeriveDueStatus(dec("20"), dec("20"), due, before))
	require.Equal(t, DueStatusPaid, DeriveDueStatus(dec("20"), dec("25"), due, before))
	require.Equal(t, DueStatusPartial, DeriveDueStatus(dec("20"), dec("5"), due, after))
	require.Equal(t, DueStatusPending, DeriveDueStatus(dec("20"), dec("0"), due, before))
	require.Equal(t, DueStatusLate, DeriveDueStatus(dec("20"), dec("0"), due, after))
}

func TestApplyPaymentOrdersObligations(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := svc.AddInitialDebt(ctx, 1, 2024, dec("50"))
	require.NoError(t, err)
	_, err = svc.AddInitialDebt(ctx, 1, 2023, dec("30"))
	require.NoError(t, err)

	dueDate := time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC)
	_, err = store.CreateDue(ctx, Due{
		AdherentID: 1, DueTypeID: 1, Year: 2025, Month: 5,
		Expected: dec("20"), Paid: decimal.Zero, Remaining: dec("20"),
		Status: DueStatusLate, DueDate: dueDate,
	})
	require.NoError(t, err)

	// 30 (2023 debt) + 50 (2024 debt) + 10 toward the due.
	alloc, err := svc.ApplyPayment(ctx, 1, dec("90"))
	require.NoError(t, err)
	require.True(t, alloc.Applied.Equal(dec("90")))
	require.True(t, alloc.Leftover.IsZero())
	require.Len(t, alloc.Lines, 3)
	require.Equal(t, "detteInitiale", alloc.Lines[0].Kind)
	require.Equal(t, "detteInitiale", alloc.Lines[1].Kind)
	require.Equal(t, "cotisation", alloc.Lines[2].Kind)
	// Oldest year first.
	require.True(t, alloc.Lines[0].Applied.Equal(dec("30")))
	require.True(t, alloc.Lines[1].Applied.Equal(dec("50")))
	require.True(t, alloc.Lines[2].Applied.Equal(dec("10")))

	dues, err := store.ListOpenDues(ctx, 1)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	require.True(t, dues[0].Remaining.Equal(dec("10")))
	require.Equal(t, DueStatusPartial, dues[0].Status)
}

func TestApplyPaymentOverflowCreatesCredit(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := svc.AddInitialDebt(ctx, 1, 2024, dec("40"))
	require.NoError(t, err)

	alloc, err := svc.ApplyPayment(ctx, 1, dec("100"))
	require.NoError(t, err)
	require.True(t, alloc.Applied.Equal(dec("40")))
	require.True(t, alloc.Leftover.Equal(dec("60")))
	require.NotZero(t, alloc.CreditID)

	credits, err := store.ListAvailableCredits(ctx, 1)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	require.True(t, credits[0].Remaining.Equal(dec("60")))

	debts, err := store.ListOpenDebts(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, debts)
}

func TestApplyPaymentNeverNegativeRemaining(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	debt, err := svc.AddInitialDebt(ctx, 1, 2024, dec("10"))
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, 1, dec("25"))
	require.NoError(t, err)

	stored := store.debts[debt.ID]
	require.True(t, stored.Remaining.IsZero())
	require.True(t, stored.Paid.Equal(dec("10")))
	require.True(t, stored.Remaining.Equal(stored.Amount.Sub(stored.Paid)))
}

func TestApplyCreditsConsumesAvoirs(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := svc.AddInitialDebt(ctx, 1, 2024, dec("50"))
	require.NoError(t, err)
	granted, err := svc.GrantCredit(ctx, 1, dec("20"), "trop percu")
	require.NoError(t, err)

	alloc, err := svc.ApplyCredits(ctx, 1)
	require.NoError(t, err)
	require.True(t, alloc.Applied.Equal(dec("20")))

	require.Equal(t, CreditExhausted, store.credits[granted.ID].Status)

	debts, err := store.ListOpenDebts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	require.True(t, debts[0].Remaining.Equal(dec("30")))
}

func TestEnsureMonthlyDuesIdempotent(t *testing.T) {
	store := newMemoryLedgerStore()
	store.activeIDs = []int64{1, 2}
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := svc.AddDueType(ctx, "cotisation standard", dec("15"))
	require.NoError(t, err)

	created, err := svc.EnsureMonthlyDues(ctx, 2025, 6)
	require.NoError(t, err)
	require.Equal(t, 2, created)

	created, err = svc.EnsureMonthlyDues(ctx, 2025, 6)
	require.NoError(t, err)
	require.Zero(t, created)

	dues, err := store.ListOpenDues(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dues, 2)
	for _, d := range dues {
		require.True(t, d.Remaining.Equal(dec("15")))
		// June 10 is in the past relative to the fixed clock.
		require.Equal(t, DueStatusLate, d.Status)
	}
}

func TestSweepLateDues(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := store.CreateDue(ctx, Due{
		AdherentID: 1, DueTypeID: 1, Year: 2025, Month: 4,
		Expected: dec("20"), Paid: decimal.Zero, Remaining: dec("20"),
		Status: DueStatusPending, DueDate: time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = store.CreateDue(ctx, Due{
		AdherentID: 1, DueTypeID: 1, Year: 2025, Month: 7,
		Expected: dec("20"), Paid: decimal.Zero, Remaining: dec("20"),
		Status: DueStatusPending, DueDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	n, err := svc.SweepLateDues(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestTotalOwedNetsCredits(t *testing.T) {
	store := newMemoryLedgerStore()
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	_, err := svc.AddInitialDebt(ctx, 1, 2024, dec("60"))
	require.NoError(t, err)
	_, err = svc.GrantCredit(ctx, 1, dec("100"), "don")
	require.NoError(t, err)

	owed, err := svc.TotalOwed(ctx, 1)
	require.NoError(t, err)
	// Credits exceed debts: net owed floors at zero.
	require.True(t, owed.IsZero())
}

func TestCancelAssistanceExcludesFromLedger(t *testing.T) {
	store := newMemoryLedgerStore()
	store.eventDates[9] = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(store)
	svc.WithNow(fixedNow)

	ctx := context.Background()
	a, err := svc.RequestAssistance(ctx, 1, 9, dec("35"))
	require.NoError(t, err)

	owed, err := svc.TotalOwed(ctx, 1)
	require.NoError(t, err)
	require.True(t, owed.Equal(dec("35")))

	require.NoError(t, svc.CancelAssistance(ctx, a.ID))

	owed, err = svc.TotalOwed(ctx, 1)
	require.NoError(t, err)
	require.True(t, owed.IsZero())
}
