package adherents

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/shared"
)

// ErrEmailTaken indicates the email is already registered.
var ErrEmailTaken = errors.New("adherents: email already registered")

// Repository provides PostgreSQL backed persistence for adherents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new adherent.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Adherent, error) {
	const query = `
		INSERT INTO adherents (first_name, last_name, email, phone, status, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'ACTIVE', $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var a Adherent
	err := r.pool.QueryRow(ctx, query,
		input.FirstName, input.LastName, input.Email, input.Phone, input.JoinedAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	a.FirstName = input.FirstName
	a.LastName = input.LastName
	a.Email = input.Email
	a.Phone = input.Phone
	a.Status = StatusActive
	a.JoinedAt = input.JoinedAt
	return &a, nil
}

// Get fetches an adherent by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Adherent, error) {
	const query = `
		SELECT id, first_name, last_name, email, phone, status, joined_at, created_at, updated_at
		FROM adherents
		WHERE id = $1`
	var a Adherent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Status, &a.JoinedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns adherents matching the filter ordered by last then first name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Adherent, error) {
	const query = `
		SELECT id, first_name, last_name, email, phone, status, joined_at, created_at, updated_at
		FROM adherents
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR last_name ILIKE '%' || $2 || '%' OR first_name ILIKE '%' || $2 || '%')
		ORDER BY last_name, first_name
		LIMIT $3 OFFSET $4`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, query, string(filter.Status), filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Adherent
	for rows.Next() {
		var a Adherent
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Status, &a.JoinedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the number of adherents matching the filter.
func (r *Repository) Count(ctx context.Context, filter ListFilter) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM adherents
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR last_name ILIKE '%' || $2 || '%' OR first_name ILIKE '%' || $2 || '%')`
	var n int
	err := r.pool.QueryRow(ctx, query, string(filter.Status), filter.Search).Scan(&n)
	return n, err
}

// Update modifies the identity fields of an adherent.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (*Adherent, error) {
	const query = `
		UPDATE adherents
		SET first_name = $2, last_name = $3, email = $4, phone = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, first_name, last_name, email, phone, status, joined_at, created_at, updated_at`
	var a Adherent
	err := r.pool.QueryRow(ctx, query, id, input.FirstName, input.LastName, input.Email, input.Phone).Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Status, &a.JoinedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &a, nil
}

// SetStatus moves an adherent to a new lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE adherents SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
