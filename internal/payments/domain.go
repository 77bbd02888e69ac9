package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates payment lifecycle statuses. A validated payment is
// immutable except for a later cancellation correcting its status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// Method enumerates accepted payment methods.
type Method string

const (
	MethodCash     Method = "ESPECES"
	MethodCheque   Method = "CHEQUE"
	MethodTransfer Method = "VIREMENT"
	MethodCard     Method = "CARTE"
)

// Valid reports whether the method is a known value.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCheque, MethodTransfer, MethodCard:
		return true
	}
	return false
}

// Payment is a record of money received from an adherent.
type Payment struct {
	ID          int64
	Reference   string
	AdherentID  int64
	Amount      decimal.Decimal
	Method      Method
	PaidAt      time.Time
	Status      Status
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ValidatedAt *time.Time
}

// CreateInput carries the fields required to record a payment.
type CreateInput struct {
	AdherentID int64
	Amount     decimal.Decimal
	Method     Method
	PaidAt     time.Time
	Note       string
}

// ListFilter narrows payment listings.
type ListFilter struct {
	AdherentID int64
	Status     Status
	Limit      int
	Offset     int
}
