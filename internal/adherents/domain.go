package adherents

import "time"

// Status enumerates adherent lifecycle statuses. Adherents are never
// deleted, only moved between statuses.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Adherent is an association member.
type Adherent struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"prenom"`
	LastName  string    `json:"nom"`
	Email     string    `json:"email"`
	Phone     string    `json:"telephone"`
	Status    Status    `json:"statut"`
	JoinedAt  time.Time `json:"dateAdhesion"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// CreateInput carries the fields required to register an adherent.
type CreateInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	JoinedAt  time.Time
}

// UpdateInput carries the mutable fields of an adherent record.
type UpdateInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ListFilter narrows adherent listings.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}
