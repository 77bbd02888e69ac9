package elections

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amicale/amicale/internal/shared"
)

// Store abstracts election persistence.
type Store interface {
	CreateElection(ctx context.Context, input CreateInput) (*Election, error)
	GetElection(ctx context.Context, id int64) (*Election, error)
	ListElections(ctx context.Context) ([]Election, error)
	SetElectionStatus(ctx context.Context, id int64, status Status) error

	AddCandidate(ctx context.Context, electionID, adherentID int64, name string) (*Candidate, error)
	ListCandidates(ctx context.Context, electionID int64) ([]Candidate, error)

	CreateVote(ctx context.Context, vote Vote) error
	CountVotes(ctx context.Context, electionID int64) (map[int64]int, error)
}

// Repository provides PostgreSQL backed persistence for elections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// CreateElection inserts a draft election.
func (r *Repository) CreateElection(ctx context.Context, input CreateInput) (*Election, error) {
	const query = `
		INSERT INTO elections (title, starts_at, ends_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'DRAFT', NOW(), NOW())
		RETURNING id, created_at, updated_at`
	e := Election{Title: input.Title, StartsAt: input.StartsAt, EndsAt: input.EndsAt, Status: StatusDraft}
	if err := r.pool.QueryRow(ctx, query, input.Title, input.StartsAt, input.EndsAt).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetElection fetches an election by ID.
func (r *Repository) GetElection(ctx context.Context, id int64) (*Election, error) {
	const query = `
		SELECT id, title, starts_at, ends_at, status, created_at, updated_at
		FROM elections
		WHERE id = $1`
	var e Election
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListElections returns all elections, newest first.
func (r *Repository) ListElections(ctx context.Context) ([]Election, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, starts_at, ends_at, status, created_at, updated_at
		FROM elections
		ORDER BY starts_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Election
	for rows.Next() {
		var e Election
		if err := rows.Scan(&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetElectionStatus updates the lifecycle status.
func (r *Repository) SetElectionStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE elections SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AddCandidate registers a candidate in an election.
func (r *Repository) AddCandidate(ctx context.Context, electionID, adherentID int64, name string) (*Candidate, error) {
	const query = `
		INSERT INTO election_candidates (election_id, adherent_id, name)
		VALUES ($1, $2, $3)
		RETURNING id`
	c := Candidate{ElectionID: electionID, AdherentID: adherentID, Name: name}
	if err := r.pool.QueryRow(ctx, query, electionID, adherentID, name).Scan(&c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCandidates returns the candidates of an election.
func (r *Repository) ListCandidates(ctx context.Context, electionID int64) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, election_id, adherent_id, name
		FROM election_candidates
		WHERE election_id = $1
		ORDER BY name, id`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.AdherentID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateVote inserts a ballot. A unique index on (election_id,
// adherent_id) enforces one vote per adherent.
func (r *Repository) CreateVote(ctx context.Context, vote Vote) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO election_votes (election_id, candidate_id, adherent_id, cast_at)
		VALUES ($1, $2, $3, $4)`,
		vote.ElectionID, vote.CandidateID, vote.AdherentID, vote.CastAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyVoted
		}
		return err
	}
	return nil
}

// CountVotes returns the ballot count per candidate.
func (r *Repository) CountVotes(ctx context.Context, electionID int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT candidate_id, COUNT(*)
		FROM election_votes
		WHERE election_id = $1
		GROUP BY candidate_id`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var candidateID int64
		var count int
		if err := rows.Scan(&candidateID, &count); err != nil {
			return nil, err
		}
		out[candidateID] = count
	}
	return out, rows.Err()
}
