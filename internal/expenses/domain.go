package expenses

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates expense lifecycle statuses. A validated expense is an
// immutable record of money spent.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// Category groups expenses for reporting.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"nom"`
}

// Expense is a record of money spent by the association.
type Expense struct {
	ID          int64
	Reference   string
	Label       string
	CategoryID  int64
	Amount      decimal.Decimal
	SpentAt     time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ValidatedAt *time.Time
}

// CreateInput carries the fields required to record an expense.
type CreateInput struct {
	Label      string
	CategoryID int64
	Amount     decimal.Decimal
	SpentAt    time.Time
}

// ListFilter narrows expense listings.
type ListFilter struct {
	CategoryID int64
	Status     Status
	Limit      int
	Offset     int
}
