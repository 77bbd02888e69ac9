package relance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/shared"
)

// Store abstracts reminder persistence.
type Store interface {
	GetConfig(ctx context.Context) (*Config, error)
	SaveConfig(ctx context.Context, cfg Config) error
	ListLateDues(ctx context.Context, dueBefore time.Time) ([]LateDue, error)
}

// Repository provides PostgreSQL backed persistence for reminders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// GetConfig loads the single configuration row.
func (r *Repository) GetConfig(ctx context.Context) (*Config, error) {
	const query = `
		SELECT enabled, delay_days, subject, body_template, updated_at
		FROM relance_config
		WHERE id = 1`
	var cfg Config
	err := r.pool.QueryRow(ctx, query).Scan(&cfg.Enabled, &cfg.DelayDays, &cfg.Subject, &cfg.BodyTemplate, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig upserts the single configuration row.
func (r *Repository) SaveConfig(ctx context.Context, cfg Config) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relance_config (id, enabled, delay_days, subject, body_template, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    delay_days = EXCLUDED.delay_days,
		    subject = EXCLUDED.subject,
		    body_template = EXCLUDED.body_template,
		    updated_at = NOW()`,
		cfg.Enabled, cfg.DelayDays, cfg.Subject, cfg.BodyTemplate)
	return err
}

// ListLateDues returns overdue cotisations with the adherent contact,
// restricted to active adherents with an email address.
func (r *Repository) ListLateDues(ctx context.Context, dueBefore time.Time) ([]LateDue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.adherent_id, a.first_name, a.last_name, a.email,
		       d.year, d.month, d.remaining, d.due_date
		FROM dues d
		JOIN adherents a ON a.id = d.adherent_id
		WHERE d.status = 'LATE'
		  AND d.due_date < $1
		  AND a.status = 'ACTIVE'
		  AND a.email <> ''
		ORDER BY d.adherent_id, d.year, d.month`, dueBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LateDue
	for rows.Next() {
		var d LateDue
		if err := rows.Scan(&d.AdherentID, &d.FirstName, &d.LastName, &d.Email, &d.Year, &d.Month, &d.Remaining, &d.DueDate); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
