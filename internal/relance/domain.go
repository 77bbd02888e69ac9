package relance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the persisted reminder configuration. A single row backs it;
// reminders stay off until someone enables them explicitly.
type Config struct {
	Enabled      bool      `json:"active"`
	DelayDays    int       `json:"delaiJours"`
	Subject      string    `json:"sujet"`
	BodyTemplate string    `json:"modele"`
	UpdatedAt    time.Time `json:"-"`
}

// DefaultConfig is used until a configuration row exists.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		DelayDays:    7,
		Subject:      "Rappel de cotisation",
		BodyTemplate: "Bonjour {prenom}, votre cotisation de {montant} reste due.",
	}
}

// LateDue is one overdue cotisation joined with the adherent contact.
type LateDue struct {
	AdherentID int64
	FirstName  string
	LastName   string
	Email      string
	Year       int
	Month      int
	Remaining  decimal.Decimal
	DueDate    time.Time
}

// Reminder is one outgoing reminder, covering every overdue period of an
// adherent.
type Reminder struct {
	AdherentID int64
	Email      string
	Subject    string
	Body       string
	Total      decimal.Decimal
	Periods    int
}
