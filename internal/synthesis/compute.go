package synthesis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/amicale/amicale/internal/money"
)

// AggregateAdherent computes one adherent's breakdown from pre-filtered
// collections. Pure: no side effects, no reads.
func AggregateAdherent(a AdherentRecord, debts []DebtRecord, dues []DueRecord, assistance []AssistanceRecord, credits []CreditRecord, payments []PaymentRecord, now time.Time) AdherentSynthese {
	year, month := now.Year(), now.Month()

	dettesInitiales := decimal.Zero
	for _, d := range debts {
		dettesInitiales = dettesInitiales.Add(d.Remaining)
	}

	cotisationMoisCourant := decimal.Zero
	totalCotisations := decimal.Zero
	for _, d := range dues {
		totalCotisations = totalCotisations.Add(d.Remaining)
		if d.Year == year && time.Month(d.Month) == month {
			cotisationMoisCourant = cotisationMoisCourant.Add(d.Remaining)
		}
	}

	assistanceMoisCourant := decimal.Zero
	totalAssistances := decimal.Zero
	for _, as := range assistance {
		totalAssistances = totalAssistances.Add(as.Remaining)
		if as.EventDate.Year() == year && as.EventDate.Month() == month {
			assistanceMoisCourant = assistanceMoisCourant.Add(as.Remaining)
		}
	}

	totalAvoirs := decimal.Zero
	for _, c := range credits {
		totalAvoirs = totalAvoirs.Add(c.Remaining)
	}

	totalPaye := decimal.Zero
	for _, p := range payments {
		totalPaye = totalPaye.Add(p.Amount)
	}

	detteTotale := dettesInitiales.Add(totalCotisations).Add(totalAssistances)
	detteNette := money.NonNegative(detteTotale.Sub(totalAvoirs))
	solde := totalPaye.Sub(detteTotale).Add(totalAvoirs)

	return AdherentSynthese{
		AdherentID:                 a.ID,
		Prenom:                     a.FirstName,
		Nom:                        a.LastName,
		DettesInitiales:            money.Round2(dettesInitiales),
		CotisationMoisCourant:      money.Round2(cotisationMoisCourant),
		TotalCotisationsMensuelles: money.Round2(totalCotisations),
		AssistanceMoisCourant:      money.Round2(assistanceMoisCourant),
		TotalAssistances:           money.Round2(totalAssistances),
		TotalAvoirs:                money.Round2(totalAvoirs),
		TotalPaye:                  money.Round2(totalPaye),
		DetteTotale:                money.Round2(detteTotale),
		DetteNette:                 money.Round2(detteNette),
		Solde:                      money.Round2(solde),
	}
}

// AggregateStats computes the global block from the raw dataset and the
// already-built per-adherent breakdowns.
func AggregateStats(ds Dataset, perAdherent []AdherentSynthese, policy CreancesPolicy) Stats {
	totalRecettes := decimal.Zero
	for _, p := range ds.Payments {
		totalRecettes = totalRecettes.Add(p.Amount)
	}
	totalDepenses := decimal.Zero
	for _, e := range ds.Expenses {
		totalDepenses = totalDepenses.Add(e.Amount)
	}
	totalDettes := decimal.Zero
	for _, d := range ds.Debts {
		totalDettes = totalDettes.Add(d.Remaining)
	}
	totalCotisations := decimal.Zero
	for _, d := range ds.Dues {
		totalCotisations = totalCotisations.Add(d.Remaining)
	}
	totalAssistances := decimal.Zero
	for _, a := range ds.Assistance {
		totalAssistances = totalAssistances.Add(a.Remaining)
	}
	totalAvoirs := decimal.Zero
	for _, c := range ds.Credits {
		totalAvoirs = totalAvoirs.Add(c.Remaining)
	}

	totalCreances := totalDettes.Add(totalCotisations).Add(totalAssistances).Sub(totalAvoirs)
	if policy == CreancesFloorZero {
		totalCreances = money.NonNegative(totalCreances)
	}

	endettes, crediteurs := 0, 0
	for _, s := range perAdherent {
		if s.DetteNette.IsPositive() {
			endettes++
		}
		if s.Solde.IsPositive() {
			crediteurs++
		}
	}

	return Stats{
		TotalRecettes:              money.Round2(totalRecettes),
		TotalDepenses:              money.Round2(totalDepenses),
		TotalDettesInitiales:       money.Round2(totalDettes),
		TotalCotisationsMensuelles: money.Round2(totalCotisations),
		TotalAssistances:           money.Round2(totalAssistances),
		TotalAvoirs:                money.Round2(totalAvoirs),
		TotalCreances:              money.Round2(totalCreances),
		SoldeBancaireEstime:        money.Round2(totalRecettes.Sub(totalDepenses)),
		NombreAdherents:            len(ds.Adherents),
		NombreAdherentsEndettes:    endettes,
		NombreAdherentsCrediteurs:  crediteurs,
		NombrePaiements:            len(ds.Payments),
		NombreDepenses:             len(ds.Expenses),
	}
}

// BuildReport assembles the full response from one dataset snapshot.
func BuildReport(ds Dataset, now time.Time, policy CreancesPolicy) Report {
	debtsByAdherent := make(map[int64][]DebtRecord)
	for _, d := range ds.Debts {
		debtsByAdherent[d.AdherentID] = append(debtsByAdherent[d.AdherentID], d)
	}
	duesByAdherent := make(map[int64][]DueRecord)
	for _, d := range ds.Dues {
		duesByAdherent[d.AdherentID] = append(duesByAdherent[d.AdherentID], d)
	}
	assistanceByAdherent := make(map[int64][]AssistanceRecord)
	for _, a := range ds.Assistance {
		assistanceByAdherent[a.AdherentID] = append(assistanceByAdherent[a.AdherentID], a)
	}
	creditsByAdherent := make(map[int64][]CreditRecord)
	for _, c := range ds.Credits {
		creditsByAdherent[c.AdherentID] = append(creditsByAdherent[c.AdherentID], c)
	}
	paymentsByAdherent := make(map[int64][]PaymentRecord)
	for _, p := range ds.Payments {
		paymentsByAdherent[p.AdherentID] = append(paymentsByAdherent[p.AdherentID], p)
	}

	perAdherent := make([]AdherentSynthese, 0, len(ds.Adherents))
	for _, a := range ds.Adherents {
		perAdherent = append(perAdherent, AggregateAdherent(
			a,
			debtsByAdherent[a.ID],
			duesByAdherent[a.ID],
			assistanceByAdherent[a.ID],
			creditsByAdherent[a.ID],
			paymentsByAdherent[a.ID],
			now,
		))
	}
	sortAdherents(perAdherent)

	paiements := make([]PaiementRow, 0, len(ds.Payments))
	for _, p := range ds.Payments {
		paiements = append(paiements, PaiementRow{
			ID:        p.ID,
			Adherent:  p.AdherentName,
			Montant:   money.Round2(p.Amount),
			Methode:   p.Method,
			Reference: p.Reference,
			Date:      p.PaidAt.UTC().Format(time.RFC3339),
		})
	}
	depenses := make([]DepenseRow, 0, len(ds.Expenses))
	for _, e := range ds.Expenses {
		depenses = append(depenses, DepenseRow{
			ID:        e.ID,
			Libelle:   e.Label,
			Categorie: e.Category,
			Montant:   money.Round2(e.Amount),
			Date:      e.SpentAt.UTC().Format(time.RFC3339),
		})
	}

	return Report{
		Stats:               AggregateStats(ds, perAdherent, policy),
		SyntheseParAdherent: perAdherent,
		Paiements:           paiements,
		Depenses:            depenses,
		DateGeneration:      now.UTC().Format(time.RFC3339),
	}
}

// sortAdherents orders the breakdown by last name then first name using
// French collation. The collator is per-call: it is not safe for
// concurrent use.
func sortAdherents(list []AdherentSynthese) {
	coll := collate.New(language.French)
	sort.SliceStable(list, func(i, j int) bool {
		if c := coll.CompareString(list[i].Nom, list[j].Nom); c != 0 {
			return c < 0
		}
		return coll.CompareString(list[i].Prenom, list[j].Prenom) < 0
	})
}
