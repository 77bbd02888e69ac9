package elections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amicale/amicale/internal/shared"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

type memoryElectionStore struct {
	elections  map[int64]*Election
	candidates map[int64][]Candidate
	votes      map[int64]map[int64]int64 // electionID -> adherentID -> candidateID
	nextID     int64
}

func newMemoryElectionStore() *memoryElectionStore {
	return &memoryElectionStore{
		elections:  make(map[int64]*Election),
		candidates: make(map[int64][]Candidate),
		votes:      make(map[int64]map[int64]int64),
	}
}

func (s *memoryElectionStore) CreateElection(ctx context.Context, input CreateInput) (*Election, error) {
	s.nextID++
	e := &Election{ID: s.nextID, Title: input.Title, StartsAt: input.StartsAt, EndsAt: input.EndsAt, Status: StatusDraft}
	s.elections[e.ID] = e
	return e, nil
}

func (s *memoryElectionStore) GetElection(ctx context.Context, id int64) (*Election, error) {
	e, ok := s.elections[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *memoryElectionStore) ListElections(ctx context.Context) ([]Election, error) {
	var out []Election
	for _, e := range s.elections {
		out = append(out, *e)
	}
	return out, nil
}

func (s *memoryElectionStore) SetElectionStatus(ctx context.Context, id int64, status Status) error {
	e, ok := s.elections[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Status = status
	return nil
}

func (s *memoryElectionStore) AddCandidate(ctx context.Context, electionID, adherentID int64, name string) (*Candidate, error) {
	s.nextID++
	c := Candidate{ID: s.nextID, ElectionID: electionID, AdherentID: adherentID, Name: name}
	s.candidates[electionID] = append(s.candidates[electionID], c)
	return &c, nil
}

func (s *memoryElectionStore) ListCandidates(ctx context.Context, electionID int64) ([]Candidate, error) {
	return s.candidates[electionID], nil
}

func (s *memoryElectionStore) CreateVote(ctx context.Context, vote Vote) error {
	byAdherent, ok := s.votes[vote.ElectionID]
	if !ok {
		byAdherent = make(map[int64]int64)
		s.votes[vote.ElectionID] = byAdherent
	}
	if _, voted := byAdherent[vote.AdherentID]; voted {
		return ErrAlreadyVoted
	}
	byAdherent[vote.AdherentID] = vote.CandidateID
	return nil
}

func (s *memoryElectionStore) CountVotes(ctx context.Context, electionID int64) (map[int64]int, error) {
	out := make(map[int64]int)
	for _, candidateID := range s.votes[electionID] {
		out[candidateID]++
	}
	return out, nil
}

func newOpenElection(t *testing.T, svc *Service, store *memoryElectionStore, names ...string) (*Election, []Candidate) {
	t.Helper()
	election, err := svc.Create(context.Background(), CreateInput{
		Title:    "Bureau 2025",
		StartsAt: fixedNow.Add(-time.Hour),
		EndsAt:   fixedNow.Add(time.Hour),
	})
	require.NoError(t, err)
	var candidates []Candidate
	for i, name := range names {
		c, err := svc.AddCandidate(context.Background(), election.ID, int64(100+i), name)
		require.NoError(t, err)
		candidates = append(candidates, *c)
	}
	require.NoError(t, svc.Open(context.Background(), election.ID))
	return election, candidates
}

func newTestService(store *memoryElectionStore) *Service {
	svc := NewService(store)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc
}

func TestCreateRejectsInvalidWindow(t *testing.T) {
	svc := newTestService(newMemoryElectionStore())

	_, err := svc.Create(context.Background(), CreateInput{Title: "x", StartsAt: fixedNow, EndsAt: fixedNow})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Title: "", StartsAt: fixedNow, EndsAt: fixedNow.Add(time.Hour)})
	require.Error(t, err)
}

func TestOneVotePerAdherent(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, candidates := newOpenElection(t, svc, store, "Diallo", "Ba")

	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[0].ID, 1))
	err := svc.CastVote(context.Background(), election.ID, candidates[1].ID, 1)
	require.ErrorIs(t, err, ErrAlreadyVoted)
}

func TestCastVoteOutsideWindow(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, candidates := newOpenElection(t, svc, store, "Diallo")

	svc.WithNow(func() time.Time { return fixedNow.Add(2 * time.Hour) })
	err := svc.CastVote(context.Background(), election.ID, candidates[0].ID, 1)
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestCastVoteOnClosedElection(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, candidates := newOpenElection(t, svc, store, "Diallo")

	require.NoError(t, svc.Close(context.Background(), election.ID))
	err := svc.CastVote(context.Background(), election.ID, candidates[0].ID, 1)
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestCastVoteRejectsForeignCandidate(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, _ := newOpenElection(t, svc, store, "Diallo")
	other, otherCandidates := newOpenElection(t, svc, store, "Ba")
	_ = other

	err := svc.CastVote(context.Background(), election.ID, otherCandidates[0].ID, 1)
	require.Error(t, err)
}

func TestCandidatesCloseOnceOpen(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, _ := newOpenElection(t, svc, store, "Diallo")

	_, err := svc.AddCandidate(context.Background(), election.ID, 200, "Tardif")
	require.Error(t, err)
}

func TestTallyOrderAndWinner(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, candidates := newOpenElection(t, svc, store, "Diallo", "Ba", "Traore")

	// Diallo 2 votes, Ba 2 votes, Traore 1 vote. Tie broken by name: Ba
	// before Diallo.
	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[0].ID, 1))
	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[0].ID, 2))
	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[1].ID, 3))
	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[1].ID, 4))
	require.NoError(t, svc.CastVote(context.Background(), election.ID, candidates[2].ID, 5))

	tally, err := svc.Tally(context.Background(), election.ID)
	require.NoError(t, err)
	require.Equal(t, 5, tally.TotalVotes)
	require.Len(t, tally.Entries, 3)
	require.Equal(t, "Ba", tally.Entries[0].Name)
	require.Equal(t, "Diallo", tally.Entries[1].Name)
	require.Equal(t, "Traore", tally.Entries[2].Name)
	require.NotNil(t, tally.Winner)
	require.Equal(t, "Ba", tally.Winner.Name)
}

func TestTallyWithoutVotesHasNoWinner(t *testing.T) {
	store := newMemoryElectionStore()
	svc := newTestService(store)
	election, _ := newOpenElection(t, svc, store, "Diallo")

	tally, err := svc.Tally(context.Background(), election.ID)
	require.NoError(t, err)
	require.Zero(t, tally.TotalVotes)
	require.Nil(t, tally.Winner)
}
