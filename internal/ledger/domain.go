package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/amicale/amicale/internal/money"
)

// DueStatus enumerates monthly due (cotisation) statuses.
type DueStatus string

const (
	DueStatusPending DueStatus = "PENDING"
	DueStatusPartial DueStatus = "PARTIAL"
	DueStatusLate    DueStatus = "LATE"
	DueStatusPaid    DueStatus = "PAID"
)

// AssistanceStatus enumerates assistance request statuses.
type AssistanceStatus string

const (
	AssistanceOpen      AssistanceStatus = "OPEN"
	AssistanceSettled   AssistanceStatus = "SETTLED"
	AssistanceCancelled AssistanceStatus = "CANCELLED"
)

// CreditStatus enumerates avoir statuses.
type CreditStatus string

const (
	CreditAvailable CreditStatus = "AVAILABLE"
	CreditExhausted CreditStatus = "EXHAUSTED"
	CreditCancelled CreditStatus = "CANCELLED"
)

// InitialDebt is a legacy/opening balance owed by an adherent for a year.
type InitialDebt struct {
	ID         int64
	AdherentID int64
	Year       int
	Amount     decimal.Decimal
	Paid       decimal.Decimal
	Remaining  decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DueType describes a recurring obligation (e.g. cotisation standard).
type DueType struct {
	ID     int64
	Name   string
	Amount decimal.Decimal
}

// Due is a monthly cotisation obligation for a period.
type Due struct {
	ID         int64
	AdherentID int64
	DueTypeID  int64
	Year       int
	Month      int
	Expected   decimal.Decimal
	Paid       decimal.Decimal
	Remaining  decimal.Decimal
	Status     DueStatus
	DueDate    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Assistance is a one-off support obligation linked to an event.
type Assistance struct {
	ID         int64
	AdherentID int64
	EventID    int64
	EventDate  time.Time
	Amount     decimal.Decimal
	Paid       decimal.Decimal
	Remaining  decimal.Decimal
	Status     AssistanceStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Credit is an avoir: a positive balance usable against future debts.
type Credit struct {
	ID         int64
	AdherentID int64
	Amount     decimal.Decimal
	Used       decimal.Decimal
	Remaining  decimal.Decimal
	Status     CreditStatus
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AllocationLine records how much of a payment went to one obligation.
type AllocationLine struct {
	Kind      string          `json:"type"`
	TargetID  int64           `json:"cibleId"`
	Applied   decimal.Decimal `json:"montantApplique"`
	Remaining decimal.Decimal `json:"restant"`
}

// Allocation summarises the application of an amount to an adherent's
// open obligations.
type Allocation struct {
	AdherentID int64            `json:"adherentId"`
	Applied    decimal.Decimal  `json:"montantApplique"`
	Leftover   decimal.Decimal  `json:"excedent"`
	CreditID   int64            `json:"avoirId,omitempty"`
	Lines      []AllocationLine `json:"lignes"`
}

// DeriveDueStatus computes the status invariant of a due: paid covering
// the expected amount means paid, a strictly partial payment means
// partial, otherwise pending or late depending on the due date.
func DeriveDueStatus(expected, paid decimal.Decimal, dueDate, now time.Time) DueStatus {
	if paid.GreaterThanOrEqual(expected) {
		return DueStatusPaid
	}
	if paid.IsPositive() {
		return DueStatusPartial
	}
	if now.After(dueDate) {
		return DueStatusLate
	}
	return DueStatusPending
}

// applyAmount pays up to `available` against an obligation and returns the
// applied amount plus the new paid/remaining pair. The remaining value is
// always amount minus paid, floored at zero.
func applyAmount(amount, paid, available decimal.Decimal) (applied, newPaid, newRemaining decimal.Decimal) {
	remaining := money.Remaining(amount, paid)
	applied = money.Min(remaining, available)
	newPaid = paid.Add(applied)
	newRemaining = money.Remaining(amount, newPaid)
	return applied, newPaid, newRemaining
}
