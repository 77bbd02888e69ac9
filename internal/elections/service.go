package elections

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// Service wraps election business rules.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create registers a draft election.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Election, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, errors.New("elections: title required")
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() || !input.EndsAt.After(input.StartsAt) {
		return nil, errors.New("elections: invalid voting window")
	}
	return s.store.CreateElection(ctx, input)
}

// Open moves a draft election to the open state.
func (s *Service) Open(ctx context.Context, id int64) error {
	election, err := s.store.GetElection(ctx, id)
	if err != nil {
		return err
	}
	if election.Status != StatusDraft {
		return errors.New("elections: only a draft election can open")
	}
	return s.store.SetElectionStatus(ctx, id, StatusOpen)
}

// Close ends the voting phase.
func (s *Service) Close(ctx context.Context, id int64) error {
	election, err := s.store.GetElection(ctx, id)
	if err != nil {
		return err
	}
	if election.Status != StatusOpen {
		return errors.New("elections: only an open election can close")
	}
	return s.store.SetElectionStatus(ctx, id, StatusClosed)
}

// Get fetches an election.
func (s *Service) Get(ctx context.Context, id int64) (*Election, error) {
	return s.store.GetElection(ctx, id)
}

// List returns all elections.
func (s *Service) List(ctx context.Context) ([]Election, error) {
	return s.store.ListElections(ctx)
}

// AddCandidate registers a candidate before voting opens.
func (s *Service) AddCandidate(ctx context.Context, electionID, adherentID int64, name string) (*Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("elections: candidate name required")
	}
	election, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != StatusDraft {
		return nil, errors.New("elections: candidates close once voting opens")
	}
	return s.store.AddCandidate(ctx, electionID, adherentID, name)
}

// Candidates returns the candidates of an election.
func (s *Service) Candidates(ctx context.Context, electionID int64) ([]Candidate, error) {
	return s.store.ListCandidates(ctx, electionID)
}

// CastVote records one adherent's ballot. An adherent votes at most once
// per election.
func (s *Service) CastVote(ctx context.Context, electionID, candidateID, adherentID int64) error {
	election, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if !election.OpenAt(now) {
		return ErrVotingClosed
	}
	candidates, err := s.store.ListCandidates(ctx, electionID)
	if err != nil {
		return err
	}
	found := false
	for _, c := range candidates {
		if c.ID == candidateID {
			found = true
			break
		}
	}
	if !found {
		return errors.New("elections: candidate not in this election")
	}
	return s.store.CreateVote(ctx, Vote{
		ElectionID:  electionID,
		CandidateID: candidateID,
		AdherentID:  adherentID,
		CastAt:      now,
	})
}

// Tally computes the election outcome: candidates sorted by vote count
// descending, ties broken by name, winner being the first entry when any
// vote was cast.
func (s *Service) Tally(ctx context.Context, electionID int64) (*Tally, error) {
	if _, err := s.store.GetElection(ctx, electionID); err != nil {
		return nil, err
	}
	candidates, err := s.store.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountVotes(ctx, electionID)
	if err != nil {
		return nil, err
	}

	entries := make([]TallyEntry, 0, len(candidates))
	total := 0
	for _, c := range candidates {
		votes := counts[c.ID]
		total += votes
		entries = append(entries, TallyEntry{CandidateID: c.ID, Name: c.Name, Votes: votes})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Votes != entries[j].Votes {
			return entries[i].Votes > entries[j].Votes
		}
		return entries[i].Name < entries[j].Name
	})

	tally := &Tally{ElectionID: electionID, Entries: entries, TotalVotes: total}
	if total > 0 && len(entries) > 0 {
		winner := entries[0]
		tally.Winner = &winner
	}
	return tally, nil
}
