package expenses

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/shared"
)

// Store abstracts expense persistence.
type Store interface {
	Create(ctx context.Context, reference string, input CreateInput) (*Expense, error)
	Get(ctx context.Context, id int64) (*Expense, error)
	List(ctx context.Context, filter ListFilter) ([]Expense, error)
	SetStatus(ctx context.Context, id int64, status Status, validatedAt *time.Time) error
	CreateCategory(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Repository provides PostgreSQL backed persistence for expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a pending expense.
func (r *Repository) Create(ctx context.Context, reference string, input CreateInput) (*Expense, error) {
	const query = `
		INSERT INTO expenses (reference, label, category_id, amount, spent_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', NOW(), NOW())
		RETURNING id, created_at, updated_at`
	e := Expense{
		Reference:  reference,
		Label:      input.Label,
		CategoryID: input.CategoryID,
		Amount:     input.Amount,
		SpentAt:    input.SpentAt,
		Status:     StatusPending,
	}
	err := r.pool.QueryRow(ctx, query,
		reference, input.Label, input.CategoryID, input.Amount, input.SpentAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get fetches an expense by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Expense, error) {
	const query = `
		SELECT id, reference, label, category_id, amount, spent_at, status, created_at, updated_at, validated_at
		FROM expenses
		WHERE id = $1`
	var e Expense
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Reference, &e.Label, &e.CategoryID, &e.Amount, &e.SpentAt, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.ValidatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns expenses matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	const query = `
		SELECT id, reference, label, category_id, amount, spent_at, status, created_at, updated_at, validated_at
		FROM expenses
		WHERE ($1 = 0 OR category_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY spent_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, query, filter.CategoryID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Reference, &e.Label, &e.CategoryID, &e.Amount, &e.SpentAt, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.ValidatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetStatus updates only the status column; amounts stay immutable.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status, validatedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET status = $2, validated_at = COALESCE($3, validated_at), updated_at = NOW() WHERE id = $1`,
		id, string(status), validatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateCategory registers an expense category.
func (r *Repository) CreateCategory(ctx context.Context, name string) (*Category, error) {
	const query = `INSERT INTO expense_categories (name) VALUES ($1) RETURNING id`
	c := Category{Name: name}
	if err := r.pool.QueryRow(ctx, query, name).Scan(&c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all expense categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
