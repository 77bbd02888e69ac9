package synthesis

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreancesPolicy selects how global receivables behave when available
// credits exceed them.
type CreancesPolicy string

const (
	// CreancesAllowNegative lets totalCreances go negative, representing a
	// net liability of the association towards its members.
	CreancesAllowNegative CreancesPolicy = "allow-negative"
	// CreancesFloorZero clamps totalCreances at zero.
	CreancesFloorZero CreancesPolicy = "floor-zero"
)

// AdherentRecord is the membership slice of the report dataset.
type AdherentRecord struct {
	ID        int64
	FirstName string
	LastName  string
	Status    string
}

// DebtRecord is an open initial debt.
type DebtRecord struct {
	AdherentID int64
	Remaining  decimal.Decimal
}

// DueRecord is an open monthly due for a period.
type DueRecord struct {
	AdherentID int64
	Year       int
	Month      int
	Remaining  decimal.Decimal
}

// AssistanceRecord is a non-cancelled assistance obligation.
type AssistanceRecord struct {
	AdherentID int64
	EventDate  time.Time
	Remaining  decimal.Decimal
}

// CreditRecord is an available avoir with a positive remaining amount.
type CreditRecord struct {
	AdherentID int64
	Remaining  decimal.Decimal
}

// PaymentRecord is a validated payment with the adherent name resolved.
type PaymentRecord struct {
	ID           int64
	AdherentID   int64
	AdherentName string
	Amount       decimal.Decimal
	Method       string
	Reference    string
	PaidAt       time.Time
}

// ExpenseRecord is a validated expense with its category name resolved.
type ExpenseRecord struct {
	ID       int64
	Label    string
	Category string
	Amount   decimal.Decimal
	SpentAt  time.Time
}

// Dataset gathers the independent read results the report is built from.
type Dataset struct {
	Adherents  []AdherentRecord
	Debts      []DebtRecord
	Dues       []DueRecord
	Assistance []AssistanceRecord
	Credits    []CreditRecord
	Payments   []PaymentRecord
	Expenses   []ExpenseRecord
}

// AdherentSynthese is the per-adherent financial breakdown.
type AdherentSynthese struct {
	AdherentID                 int64           `json:"adherentId"`
	Prenom                     string          `json:"prenom"`
	Nom                        string          `json:"nom"`
	DettesInitiales            decimal.Decimal `json:"dettesInitiales"`
	CotisationMoisCourant      decimal.Decimal `json:"cotisationMoisCourant"`
	TotalCotisationsMensuelles decimal.Decimal `json:"totalCotisationsMensuelles"`
	AssistanceMoisCourant      decimal.Decimal `json:"assistanceMoisCourant"`
	TotalAssistances           decimal.Decimal `json:"totalAssistances"`
	TotalAvoirs                decimal.Decimal `json:"totalAvoirs"`
	TotalPaye                  decimal.Decimal `json:"totalPaye"`
	DetteTotale                decimal.Decimal `json:"detteTotale"`
	DetteNette                 decimal.Decimal `json:"detteNette"`
	Solde                      decimal.Decimal `json:"solde"`
}

// Stats is the association-wide aggregate block of the report.
type Stats struct {
	TotalRecettes              decimal.Decimal `json:"totalRecettes"`
	TotalDepenses              decimal.Decimal `json:"totalDepenses"`
	TotalDettesInitiales       decimal.Decimal `json:"totalDettesInitiales"`
	TotalCotisationsMensuelles decimal.Decimal `json:"totalCotisationsMensuelles"`
	TotalAssistances           decimal.Decimal `json:"totalAssistances"`
	TotalAvoirs                decimal.Decimal `json:"totalAvoirs"`
	TotalCreances              decimal.Decimal `json:"totalCreances"`
	SoldeBancaireEstime        decimal.Decimal `json:"soldeBancaireEstime"`
	NombreAdherents            int             `json:"nombreAdherents"`
	NombreAdherentsEndettes    int             `json:"nombreAdherentsEndettes"`
	NombreAdherentsCrediteurs  int             `json:"nombreAdherentsCrediteurs"`
	NombrePaiements            int             `json:"nombrePaiements"`
	NombreDepenses             int             `json:"nombreDepenses"`
}

// PaiementRow is a flattened payment listing entry.
type PaiementRow struct {
	ID        int64           `json:"id"`
	Adherent  string          `json:"adherent"`
	Montant   decimal.Decimal `json:"montant"`
	Methode   string          `json:"methode"`
	Reference string          `json:"reference"`
	Date      string          `json:"date"`
}

// DepenseRow is a flattened expense listing entry.
type DepenseRow struct {
	ID        int64           `json:"id"`
	Libelle   string          `json:"libelle"`
	Categorie string          `json:"categorie"`
	Montant   decimal.Decimal `json:"montant"`
	Date      string          `json:"date"`
}

// Report is the full synthesis response.
type Report struct {
	Stats               Stats              `json:"stats"`
	SyntheseParAdherent []AdherentSynthese `json:"syntheseParAdherent"`
	Paiements           []PaiementRow      `json:"paiements"`
	Depenses            []DepenseRow       `json:"depenses"`
	DateGeneration      string             `json:"dateGeneration"`
}
