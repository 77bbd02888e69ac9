package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/shared"
)

// Repository provides PostgreSQL backed persistence for events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Event, error) {
	const query = `
		INSERT INTO events (label, event_date, location, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`
	var e Event
	if err := r.pool.QueryRow(ctx, query, input.Label, input.Date, input.Location).Scan(&e.ID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Label = input.Label
	e.Date = input.Date
	e.Location = input.Location
	return &e, nil
}

// Update rewrites the mutable fields of an event.
func (r *Repository) Update(ctx context.Context, id int64, input CreateInput) (*Event, error) {
	const query = `
		UPDATE events
		SET label = $2, event_date = $3, location = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, label, event_date, location, created_at`
	var e Event
	err := r.pool.QueryRow(ctx, query, id, input.Label, input.Date, input.Location).
		Scan(&e.ID, &e.Label, &e.Date, &e.Location, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Get fetches an event by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Event, error) {
	const query = `SELECT id, label, event_date, location, created_at FROM events WHERE id = $1`
	var e Event
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.Label, &e.Date, &e.Location, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns events ordered by date, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, label, event_date, location, created_at
		FROM events
		ORDER BY event_date DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Label, &e.Date, &e.Location, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
