package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/amicale/amicale/internal/platform/db"
	"github.com/amicale/amicale/internal/shared"
)

// Store abstracts ledger persistence.
type Store interface {
	CreateInitialDebt(ctx context.Context, adherentID int64, year int, amount decimal.Decimal) (*InitialDebt, error)
	ListOpenDebts(ctx context.Context, adherentID int64) ([]InitialDebt, error)
	UpdateDebtAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal) error

	CreateDueType(ctx context.Context, name string, amount decimal.Decimal) (*DueType, error)
	ListDueTypes(ctx context.Context) ([]DueType, error)

	CreateDue(ctx context.Context, due Due) (*Due, error)
	DueExists(ctx context.Context, adherentID, dueTypeID int64, year, month int) (bool, error)
	ListOpenDues(ctx context.Context, adherentID int64) ([]Due, error)
	UpdateDueAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status DueStatus) error
	MarkLateDues(ctx context.Context, now time.Time) (int64, error)

	CreateAssistance(ctx context.Context, adherentID, eventID int64, amount decimal.Decimal) (*Assistance, error)
	ListOpenAssistance(ctx context.Context, adherentID int64) ([]Assistance, error)
	UpdateAssistanceAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status AssistanceStatus) error
	CancelAssistance(ctx context.Context, id int64) error

	CreateCredit(ctx context.Context, adherentID int64, amount decimal.Decimal, reason string) (*Credit, error)
	ListAvailableCredits(ctx context.Context, adherentID int64) ([]Credit, error)
	UpdateCreditAmounts(ctx context.Context, id int64, used, remaining decimal.Decimal, status CreditStatus) error

	ListActiveAdherentIDs(ctx context.Context) ([]int64, error)
}

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var (
	_ Store    = (*Repository)(nil)
	_ TxBinder = (*Repository)(nil)
)

// WithTx returns a copy of the repository bound to tx, so ledger writes
// can share a transaction with the caller's own.
func (r *Repository) WithTx(tx pgx.Tx) Store {
	return &Repository{db: tx}
}

// CreateInitialDebt inserts an opening balance for an adherent.
func (r *Repository) CreateInitialDebt(ctx context.Context, adherentID int64, year int, amount decimal.Decimal) (*InitialDebt, error) {
	const query = `
		INSERT INTO initial_debts (adherent_id, year, amount, paid, remaining, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	d := InitialDebt{AdherentID: adherentID, Year: year, Amount: amount, Paid: decimal.Zero, Remaining: amount}
	if err := r.db.QueryRow(ctx, query, adherentID, year, amount).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListOpenDebts returns initial debts with a positive remaining amount,
// oldest year first. adherentID 0 selects all adherents.
func (r *Repository) ListOpenDebts(ctx context.Context, adherentID int64) ([]InitialDebt, error) {
	const query = `
		SELECT id, adherent_id, year, amount, paid, remaining, created_at, updated_at
		FROM initial_debts
		WHERE remaining > 0 AND ($1 = 0 OR adherent_id = $1)
		ORDER BY year, id`
	rows, err := r.db.Query(ctx, query, adherentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InitialDebt
	for rows.Next() {
		var d InitialDebt
		if err := rows.Scan(&d.ID, &d.AdherentID, &d.Year, &d.Amount, &d.Paid, &d.Remaining, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDebtAmounts stores new paid/remaining figures for a debt.
func (r *Repository) UpdateDebtAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE initial_debts SET paid = $2, remaining = $3, updated_at = NOW() WHERE id = $1`,
		id, paid, remaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateDueType registers a recurring due type.
func (r *Repository) CreateDueType(ctx context.Context, name string, amount decimal.Decimal) (*DueType, error) {
	const query = `INSERT INTO due_types (name, amount) VALUES ($1, $2) RETURNING id`
	dt := DueType{Name: name, Amount: amount}
	if err := r.db.QueryRow(ctx, query, name, amount).Scan(&dt.ID); err != nil {
		return nil, err
	}
	return &dt, nil
}

// ListDueTypes returns all due types.
func (r *Repository) ListDueTypes(ctx context.Context) ([]DueType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, amount FROM due_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueType
	for rows.Next() {
		var dt DueType
		if err := rows.Scan(&dt.ID, &dt.Name, &dt.Amount); err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

// CreateDue inserts a monthly due.
func (r *Repository) CreateDue(ctx context.Context, due Due) (*Due, error) {
	const query = `
		INSERT INTO dues (adherent_id, due_type_id, year, month, expected, paid, remaining, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		due.AdherentID, due.DueTypeID, due.Year, due.Month,
		due.Expected, due.Paid, due.Remaining, string(due.Status), due.DueDate,
	).Scan(&due.ID, &due.CreatedAt, &due.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// DueExists reports whether a due already exists for the period.
func (r *Repository) DueExists(ctx context.Context, adherentID, dueTypeID int64, year, month int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM dues
			WHERE adherent_id = $1 AND due_type_id = $2 AND year = $3 AND month = $4
		)`
	var exists bool
	err := r.db.QueryRow(ctx, query, adherentID, dueTypeID, year, month).Scan(&exists)
	return exists, err
}

// ListOpenDues returns pending, partial and late dues ordered by period.
// adherentID 0 selects all adherents.
func (r *Repository) ListOpenDues(ctx context.Context, adherentID int64) ([]Due, error) {
	const query = `
		SELECT id, adherent_id, due_type_id, year, month, expected, paid, remaining, status, due_date, created_at, updated_at
		FROM dues
		WHERE status IN ('PENDING', 'PARTIAL', 'LATE') AND ($1 = 0 OR adherent_id = $1)
		ORDER BY year, month, id`
	rows, err := r.db.Query(ctx, query, adherentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.ID, &d.AdherentID, &d.DueTypeID, &d.Year, &d.Month, &d.Expected, &d.Paid, &d.Remaining, &d.Status, &d.DueDate, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDueAmounts stores new paid/remaining/status figures for a due.
func (r *Repository) UpdateDueAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status DueStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE dues SET paid = $2, remaining = $3, status = $4, updated_at = NOW() WHERE id = $1`,
		id, paid, remaining, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkLateDues flips pending dues past their due date to late.
func (r *Repository) MarkLateDues(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE dues SET status = 'LATE', updated_at = NOW() WHERE status = 'PENDING' AND due_date < $1`,
		now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateAssistance inserts an open assistance obligation.
func (r *Repository) CreateAssistance(ctx context.Context, adherentID, eventID int64, amount decimal.Decimal) (*Assistance, error) {
	const query = `
		INSERT INTO assistance (adherent_id, event_id, amount, paid, remaining, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $3, 'OPEN', NOW(), NOW())
		RETURNING id, created_at, updated_at,
			(SELECT event_date FROM events WHERE id = $2)`
	a := Assistance{AdherentID: adherentID, EventID: eventID, Amount: amount, Paid: decimal.Zero, Remaining: amount, Status: AssistanceOpen}
	if err := r.db.QueryRow(ctx, query, adherentID, eventID, amount).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.EventDate); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListOpenAssistance returns non-cancelled assistance with a positive
// remaining amount, oldest event first. adherentID 0 selects all.
func (r *Repository) ListOpenAssistance(ctx context.Context, adherentID int64) ([]Assistance, error) {
	const query = `
		SELECT a.id, a.adherent_id, a.event_id, e.event_date, a.amount, a.paid, a.remaining, a.status, a.created_at, a.updated_at
		FROM assistance a
		JOIN events e ON e.id = a.event_id
		WHERE a.status <> 'CANCELLED' AND a.remaining > 0 AND ($1 = 0 OR a.adherent_id = $1)
		ORDER BY e.event_date, a.id`
	rows, err := r.db.Query(ctx, query, adherentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assistance
	for rows.Next() {
		var a Assistance
		if err := rows.Scan(&a.ID, &a.AdherentID, &a.EventID, &a.EventDate, &a.Amount, &a.Paid, &a.Remaining, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAssistanceAmounts stores new paid/remaining/status figures.
func (r *Repository) UpdateAssistanceAmounts(ctx context.Context, id int64, paid, remaining decimal.Decimal, status AssistanceStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assistance SET paid = $2, remaining = $3, status = $4, updated_at = NOW() WHERE id = $1`,
		id, paid, remaining, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CancelAssistance marks an assistance as cancelled; it no longer counts
// toward any balance.
func (r *Repository) CancelAssistance(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assistance SET status = 'CANCELLED', updated_at = NOW() WHERE id = $1 AND status <> 'CANCELLED'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateCredit inserts an available avoir.
func (r *Repository) CreateCredit(ctx context.Context, adherentID int64, amount decimal.Decimal, reason string) (*Credit, error) {
	const query = `
		INSERT INTO credits (adherent_id, amount, used, remaining, status, reason, created_at, updated_at)
		VALUES ($1, $2, 0, $2, 'AVAILABLE', $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	c := Credit{AdherentID: adherentID, Amount: amount, Used: decimal.Zero, Remaining: amount, Status: CreditAvailable, Reason: reason}
	if err := r.db.QueryRow(ctx, query, adherentID, amount, reason).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAvailableCredits returns available credits with a positive remaining
// amount, oldest first. adherentID 0 selects all.
func (r *Repository) ListAvailableCredits(ctx context.Context, adherentID int64) ([]Credit, error) {
	const query = `
		SELECT id, adherent_id, amount, used, remaining, status, reason, created_at, updated_at
		FROM credits
		WHERE status = 'AVAILABLE' AND remaining > 0 AND ($1 = 0 OR adherent_id = $1)
		ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, adherentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Credit
	for rows.Next() {
		var c Credit
		if err := rows.Scan(&c.ID, &c.AdherentID, &c.Amount, &c.Used, &c.Remaining, &c.Status, &c.Reason, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCreditAmounts stores new used/remaining/status figures for an avoir.
func (r *Repository) UpdateCreditAmounts(ctx context.Context, id int64, used, remaining decimal.Decimal, status CreditStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE credits SET used = $2, remaining = $3, status = $4, updated_at = NOW() WHERE id = $1`,
		id, used, remaining, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListActiveAdherentIDs returns the IDs of active adherents.
func (r *Repository) ListActiveAdherentIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM adherents WHERE status = 'ACTIVE' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetDue fetches one due by ID.
func (r *Repository) GetDue(ctx context.Context, id int64) (*Due, error) {
	const query = `
		SELECT id, adherent_id, due_type_id, year, month, expected, paid, remaining, status, due_date, created_at, updated_at
		FROM dues WHERE id = $1`
	var d Due
	err := r.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.AdherentID, &d.DueTypeID, &d.Year, &d.Month, &d.Expected, &d.Paid, &d.Remaining, &d.Status, &d.DueDate, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
