package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/platform/db"
	"github.com/amicale/amicale/internal/shared"
)

// Store abstracts payment persistence.
type Store interface {
	Create(ctx context.Context, reference string, input CreateInput) (*Payment, error)
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Payment, error)
	TransitionStatus(ctx context.Context, id int64, from, to Status, validatedAt *time.Time) error
}

// TxStore is implemented by stores that can run a function inside one
// database transaction, handing it a store bound to that transaction.
type TxStore interface {
	Store
	RunTx(ctx context.Context, fn func(tx pgx.Tx, store Store) error) error
}

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
	db   db.Querier
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

var (
	_ Store   = (*Repository)(nil)
	_ TxStore = (*Repository)(nil)
)

// RunTx executes fn inside one transaction.
func (r *Repository) RunTx(ctx context.Context, fn func(tx pgx.Tx, store Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(tx, &Repository{db: tx})
	})
}

// Create inserts a pending payment.
func (r *Repository) Create(ctx context.Context, reference string, input CreateInput) (*Payment, error) {
	const query = `
		INSERT INTO payments (reference, adherent_id, amount, method, paid_at, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	p := Payment{
		Reference:  reference,
		AdherentID: input.AdherentID,
		Amount:     input.Amount,
		Method:     input.Method,
		PaidAt:     input.PaidAt,
		Status:     StatusPending,
		Note:       input.Note,
	}
	err := r.db.QueryRow(ctx, query,
		reference, input.AdherentID, input.Amount, string(input.Method), input.PaidAt, input.Note,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get fetches a payment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Payment, error) {
	const query = `
		SELECT id, reference, adherent_id, amount, method, paid_at, status, note, created_at, updated_at, validated_at
		FROM payments
		WHERE id = $1`
	var p Payment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Reference, &p.AdherentID, &p.Amount, &p.Method, &p.PaidAt, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt, &p.ValidatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns payments matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payment, error) {
	const query = `
		SELECT id, reference, adherent_id, amount, method, paid_at, status, note, created_at, updated_at, validated_at
		FROM payments
		WHERE ($1 = 0 OR adherent_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY paid_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, query, filter.AdherentID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Reference, &p.AdherentID, &p.Amount, &p.Method, &p.PaidAt, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt, &p.ValidatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TransitionStatus flips the status column only when the row still holds
// the expected current status, so concurrent transitions cannot both win.
// Amounts stay immutable.
func (r *Repository) TransitionStatus(ctx context.Context, id int64, from, to Status, validatedAt *time.Time) error {
	const query = `
		UPDATE payments
		SET status = $3,
		    validated_at = CASE WHEN $3 = 'VALIDATED' THEN COALESCE($4, validated_at) ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, id, string(from), string(to), validatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return shared.ErrImmutable
	}
	return nil
}
