package synthesis

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source exposes the independent reads the report is built from. Every
// method returns a pre-filtered collection; the aggregation itself stays
// pure.
type Source interface {
	Adherents(ctx context.Context) ([]AdherentRecord, error)
	OpenDebts(ctx context.Context) ([]DebtRecord, error)
	OpenDues(ctx context.Context) ([]DueRecord, error)
	OpenAssistance(ctx context.Context) ([]AssistanceRecord, error)
	AvailableCredits(ctx context.Context) ([]CreditRecord, error)
	ValidatedPayments(ctx context.Context) ([]PaymentRecord, error)
	ValidatedExpenses(ctx context.Context) ([]ExpenseRecord, error)
}

// Repository provides PostgreSQL backed reads for the synthesis report.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Source = (*Repository)(nil)

// Adherents returns the whole membership.
func (r *Repository) Adherents(ctx context.Context) ([]AdherentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, first_name, last_name, status FROM adherents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdherentRecord
	for rows.Next() {
		var a AdherentRecord
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// OpenDebts returns initial debts with a positive remaining amount.
func (r *Repository) OpenDebts(ctx context.Context) ([]DebtRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT adherent_id, remaining FROM initial_debts WHERE remaining > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DebtRecord
	for rows.Next() {
		var d DebtRecord
		if err := rows.Scan(&d.AdherentID, &d.Remaining); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OpenDues returns pending, partial and late dues.
func (r *Repository) OpenDues(ctx context.Context) ([]DueRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT adherent_id, year, month, remaining
		FROM dues
		WHERE status IN ('PENDING', 'PARTIAL', 'LATE')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueRecord
	for rows.Next() {
		var d DueRecord
		if err := rows.Scan(&d.AdherentID, &d.Year, &d.Month, &d.Remaining); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OpenAssistance returns non-cancelled assistance obligations.
func (r *Repository) OpenAssistance(ctx context.Context) ([]AssistanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT adherent_id, event_date, remaining
		FROM assistance
		WHERE status <> 'CANCELLED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssistanceRecord
	for rows.Next() {
		var a AssistanceRecord
		if err := rows.Scan(&a.AdherentID, &a.EventDate, &a.Remaining); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AvailableCredits returns avoirs still usable against debts.
func (r *Repository) AvailableCredits(ctx context.Context) ([]CreditRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT adherent_id, remaining
		FROM credits
		WHERE status = 'AVAILABLE' AND remaining > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditRecord
	for rows.Next() {
		var c CreditRecord
		if err := rows.Scan(&c.AdherentID, &c.Remaining); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ValidatedPayments returns validated payments with the adherent name
// resolved, newest first.
func (r *Repository) ValidatedPayments(ctx context.Context) ([]PaymentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.adherent_id, a.last_name || ' ' || a.first_name,
		       p.amount, p.method, p.reference, p.paid_at
		FROM payments p
		JOIN adherents a ON a.id = p.adherent_id
		WHERE p.status = 'VALIDATED'
		ORDER BY p.paid_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentRecord
	for rows.Next() {
		var p PaymentRecord
		if err := rows.Scan(&p.ID, &p.AdherentID, &p.AdherentName, &p.Amount, &p.Method, &p.Reference, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ValidatedExpenses returns validated expenses with their category name
// resolved, newest first.
func (r *Repository) ValidatedExpenses(ctx context.Context) ([]ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.label, c.name, e.amount, e.spent_at
		FROM expenses e
		JOIN expense_categories c ON c.id = e.category_id
		WHERE e.status = 'VALIDATED'
		ORDER BY e.spent_at DESC, e.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseRecord
	for rows.Next() {
		var e ExpenseRecord
		if err := rows.Scan(&e.ID, &e.Label, &e.Category, &e.Amount, &e.SpentAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
