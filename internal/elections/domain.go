package elections

import (
	"errors"
	"time"
)

// ErrAlreadyVoted marks a second vote attempt by the same adherent in
// one election.
var ErrAlreadyVoted = errors.New("elections: adherent already voted")

// ErrVotingClosed marks a vote cast outside the election window.
var ErrVotingClosed = errors.New("elections: voting closed")

// Status enumerates election lifecycle statuses.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Election is a vote among adherents for a set of candidates.
type Election struct {
	ID        int64     `json:"id"`
	Title     string    `json:"titre"`
	StartsAt  time.Time `json:"dateDebut"`
	EndsAt    time.Time `json:"dateFin"`
	Status    Status    `json:"statut"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// OpenAt reports whether votes are accepted at the given instant.
func (e Election) OpenAt(now time.Time) bool {
	if e.Status != StatusOpen {
		return false
	}
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}

// Candidate is an adherent standing in an election.
type Candidate struct {
	ID         int64  `json:"id"`
	ElectionID int64  `json:"electionId"`
	AdherentID int64  `json:"adherentId"`
	Name       string `json:"nom"`
}

// Vote records one adherent's ballot.
type Vote struct {
	ID          int64
	ElectionID  int64
	CandidateID int64
	AdherentID  int64
	CastAt      time.Time
}

// TallyEntry is one candidate's result line.
type TallyEntry struct {
	CandidateID int64  `json:"candidatId"`
	Name        string `json:"nom"`
	Votes       int    `json:"voix"`
}

// Tally is the outcome of an election: entries sorted by vote count
// descending, ties broken by candidate name.
type Tally struct {
	ElectionID int64        `json:"electionId"`
	Entries    []TallyEntry `json:"resultats"`
	Winner     *TallyEntry  `json:"vainqueur,omitempty"`
	TotalVotes int          `json:"totalVoix"`
}

// CreateInput carries the fields required to create an election.
type CreateInput struct {
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}
