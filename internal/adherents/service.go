package adherents

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store abstracts persistence for the service.
type Store interface {
	Create(ctx context.Context, input CreateInput) (*Adherent, error)
	Get(ctx context.Context, id int64) (*Adherent, error)
	List(ctx context.Context, filter ListFilter) ([]Adherent, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*Adherent, error)
	SetStatus(ctx context.Context, id int64, status Status) error
}

// Service wraps adherent business rules.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates a new adherent record.
func (s *Service) Register(ctx context.Context, input CreateInput) (*Adherent, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if input.FirstName == "" || input.LastName == "" {
		return nil, errors.New("adherents: first and last name required")
	}
	if input.JoinedAt.IsZero() {
		input.JoinedAt = time.Now().UTC()
	}
	return s.store.Create(ctx, input)
}

// Get fetches an adherent.
func (s *Service) Get(ctx context.Context, id int64) (*Adherent, error) {
	return s.store.Get(ctx, id)
}

// List returns adherents matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Adherent, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, errors.New("adherents: unknown status filter")
	}
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update modifies an adherent's identity fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Adherent, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.FirstName == "" || input.LastName == "" {
		return nil, errors.New("adherents: first and last name required")
	}
	return s.store.Update(ctx, id, input)
}

// ChangeStatus moves an adherent to another lifecycle status. Records are
// never deleted.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return errors.New("adherents: unknown status")
	}
	return s.store.SetStatus(ctx, id, status)
}
