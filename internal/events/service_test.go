package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	events         map[string]Event
	participations map[string]Participation
	agendaItems    map[string]AgendaItem
	speakers       map[string]Speaker
	elections      map[string]Election
	options        map[string]ElectionOption
	votes          map[string]Vote
	seq            int
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:         map[string]Event{},
		participations: map[string]Participation{},
		agendaItems:    map[string]AgendaItem{},
		speakers:       map[string]Speaker{},
		elections:      map[string]Election{},
		options:        map[string]ElectionOption{},
		votes:          map[string]Vote{},
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error) {
	e := Event{ID: r.nextID("e"), GroupID: input.GroupID, Name: input.Name, Description: input.Description, Location: input.Location, Visibility: input.Visibility, OwnerID: input.OwnerID, StartsAt: input.StartsAt, EndsAt: input.EndsAt}
	r.events[e.ID] = e
	return &e, nil
}

func (r *memRepo) GetEvent(ctx context.Context, id string) (*Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

func (r *memRepo) ListEvents(ctx context.Context, groupID string, limit, offset int) ([]Event, int, error) {
	var out []Event
	for _, e := range r.events {
		if groupID == "" || e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateEvent(ctx context.Context, id string, input UpdateEventInput) (*Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	e.Name = input.Name
	e.Description = input.Description
	e.Location = input.Location
	e.Visibility = input.Visibility
	e.StartsAt = input.StartsAt
	e.EndsAt = input.EndsAt
	r.events[id] = e
	return &e, nil
}

func (r *memRepo) DeleteEvent(ctx context.Context, id string) error {
	if _, ok := r.events[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memRepo) CreateParticipation(ctx context.Context, eventID, userID string, status authz.ParticipantStatus, roleID string) (*Participation, error) {
	for _, p := range r.participations {
		if p.EventID == eventID && p.UserID == userID {
			return nil, ErrParticipationExists
		}
	}
	p := Participation{ID: r.nextID("p"), EventID: eventID, UserID: userID, Status: status, RoleID: roleID}
	r.participations[p.ID] = p
	return &p, nil
}

func (r *memRepo) GetParticipation(ctx context.Context, id string) (*Participation, error) {
	p, ok := r.participations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) ListParticipations(ctx context.Context, eventID string) ([]Participation, error) {
	var out []Participation
	for _, p := range r.participations {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateParticipationStatus(ctx context.Context, id string, status authz.ParticipantStatus) (*Participation, error) {
	p, ok := r.participations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Status = status
	r.participations[id] = p
	return &p, nil
}

func (r *memRepo) DeleteParticipation(ctx context.Context, id string) error {
	if _, ok := r.participations[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.participations, id)
	return nil
}

func (r *memRepo) CreateAgendaItem(ctx context.Context, eventID string, input AgendaItemInput) (*AgendaItem, error) {
	a := AgendaItem{ID: r.nextID("a"), EventID: eventID, Title: input.Title, Description: input.Description, Position: input.Position, StartsAt: input.StartsAt, EndsAt: input.EndsAt}
	r.agendaItems[a.ID] = a
	return &a, nil
}

func (r *memRepo) ListAgendaItems(ctx context.Context, eventID string) ([]AgendaItem, error) {
	var out []AgendaItem
	for _, a := range r.agendaItems {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateAgendaItem(ctx context.Context, id string, input AgendaItemInput) (*AgendaItem, error) {
	a, ok := r.agendaItems[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.Title = input.Title
	a.Description = input.Description
	a.Position = input.Position
	r.agendaItems[id] = a
	return &a, nil
}

func (r *memRepo) DeleteAgendaItem(ctx context.Context, id string) error {
	if _, ok := r.agendaItems[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.agendaItems, id)
	return nil
}

func (r *memRepo) CreateSpeaker(ctx context.Context, eventID string, input SpeakerInput) (*Speaker, error) {
	s := Speaker{ID: r.nextID("s"), EventID: eventID, AgendaItemID: input.AgendaItemID, UserID: input.UserID, Name: input.Name, Bio: input.Bio}
	r.speakers[s.ID] = s
	return &s, nil
}

func (r *memRepo) ListSpeakers(ctx context.Context, eventID string) ([]Speaker, error) {
	var out []Speaker
	for _, s := range r.speakers {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteSpeaker(ctx context.Context, id string) error {
	if _, ok := r.speakers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.speakers, id)
	return nil
}

func (r *memRepo) CreateElection(ctx context.Context, eventID, groupID string, input CreateElectionInput) (*Election, error) {
	e := Election{ID: r.nextID("el"), EventID: eventID, GroupID: groupID, Question: input.Question, State: authz.ElectionDraft, OpensAt: input.OpensAt, ClosesAt: input.ClosesAt}
	r.elections[e.ID] = e
	for i, label := range input.Options {
		o := ElectionOption{ID: r.nextID("opt"), ElectionID: e.ID, Label: label, Position: i}
		r.options[o.ID] = o
	}
	return &e, nil
}

func (r *memRepo) GetElection(ctx context.Context, id string) (*Election, error) {
	e, ok := r.elections[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

func (r *memRepo) ListElections(ctx context.Context, eventID string) ([]Election, error) {
	var out []Election
	for _, e := range r.elections {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateElectionState(ctx context.Context, id string, state authz.ElectionState) (*Election, error) {
	e, ok := r.elections[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	e.State = state
	r.elections[id] = e
	return &e, nil
}

func (r *memRepo) ListElectionOptions(ctx context.Context, electionID string) ([]ElectionOption, error) {
	var out []ElectionOption
	for _, o := range r.options {
		if o.ElectionID == electionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) CreateVote(ctx context.Context, electionID, optionID, voterID string) (*Vote, error) {
	for _, v := range r.votes {
		if v.ElectionID == electionID && v.VoterID == voterID {
			return nil, ErrAlreadyVoted
		}
	}
	v := Vote{ID: r.nextID("v"), ElectionID: electionID, OptionID: optionID, VoterID: voterID, CreatedAt: time.Now()}
	r.votes[v.ID] = v
	return &v, nil
}

func (r *memRepo) GetVote(ctx context.Context, electionID, voterID string) (*Vote, error) {
	for _, v := range r.votes {
		if v.ElectionID == electionID && v.VoterID == voterID {
			return &v, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepo) Tally(ctx context.Context, electionID string) ([]TallyRow, error) {
	counts := map[string]int{}
	for _, v := range r.votes {
		if v.ElectionID == electionID {
			counts[v.OptionID]++
		}
	}
	var out []TallyRow
	for _, o := range r.options {
		if o.ElectionID == electionID {
			out = append(out, TallyRow{OptionID: o.ID, Label: o.Label, Count: counts[o.ID]})
		}
	}
	return out, nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil, nil, nil, nil), repo
}

func TestCreateEventMakesOwnerRosterAdmin(t *testing.T) {
	svc, repo := newTestService()

	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)

	roster, err := repo.ListParticipations(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "U1", roster[0].UserID)
	require.Equal(t, authz.ParticipantAdmin, roster[0].Status)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "  ", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrNameRequired)

	start := time.Now()
	_, err = svc.CreateEvent(context.Background(), CreateEventInput{
		GroupID:  "G1",
		Name:     "Assembly",
		OwnerID:  "U1",
		StartsAt: start,
		EndsAt:   start.Add(-time.Hour),
	})
	require.ErrorIs(t, err, ErrBadTimeRange)

	_, err = svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1", Visibility: "internal"})
	require.ErrorIs(t, err, ErrBadVisibility)
}

func TestDuplicateParticipationRejected(t *testing.T) {
	svc, _ := newTestService()
	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.AddParticipant(context.Background(), "U1", event.ID, "U2", "", "")
	require.NoError(t, err)
	_, err = svc.AddParticipant(context.Background(), "U1", event.ID, "U2", "", "")
	require.ErrorIs(t, err, ErrParticipationExists)
}

func TestElectionLifecycle(t *testing.T) {
	svc, _ := newTestService()
	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)

	election, err := svc.CreateElection(context.Background(), "U1", event.ID, event.GroupID, CreateElectionInput{
		Question: "Adopt the proposal?",
		Options:  []string{"Yes", "No"},
	})
	require.NoError(t, err)
	require.Equal(t, authz.ElectionDraft, election.State)

	// Votes are rejected before opening.
	options, err := svc.ListElectionOptions(context.Background(), election.ID)
	require.NoError(t, err)
	require.Len(t, options, 2)
	_, err = svc.CastVote(context.Background(), election, options[0].ID, "U2")
	require.ErrorIs(t, err, ErrElectionNotOpen)

	opened, err := svc.OpenElection(context.Background(), "U1", election.ID)
	require.NoError(t, err)
	require.Equal(t, authz.ElectionOpen, opened.State)

	_, err = svc.OpenElection(context.Background(), "U1", election.ID)
	require.ErrorIs(t, err, ErrElectionNotDraft)

	closed, tally, err := svc.CloseElection(context.Background(), "U1", election.ID)
	require.NoError(t, err)
	require.Equal(t, authz.ElectionFinished, closed.State)
	require.Len(t, tally, 2)

	_, _, err = svc.CloseElection(context.Background(), "U1", election.ID)
	require.ErrorIs(t, err, ErrElectionNotOpen)
}

func TestCreateElectionNeedsTwoOptions(t *testing.T) {
	svc, _ := newTestService()
	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.CreateElection(context.Background(), "U1", event.ID, event.GroupID, CreateElectionInput{
		Question: "Adopt?",
		Options:  []string{"Yes", "  "},
	})
	require.ErrorIs(t, err, ErrOptionsRequired)
}

func TestCastVoteIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)
	election, err := svc.CreateElection(context.Background(), "U1", event.ID, event.GroupID, CreateElectionInput{
		Question: "Adopt?",
		Options:  []string{"Yes", "No"},
	})
	require.NoError(t, err)
	opened, err := svc.OpenElection(context.Background(), "U1", election.ID)
	require.NoError(t, err)

	options, err := svc.ListElectionOptions(context.Background(), election.ID)
	require.NoError(t, err)

	first, err := svc.CastVote(context.Background(), opened, options[0].ID, "U2")
	require.NoError(t, err)

	// A repeat cast, even for a different option, returns the original vote
	// and does not double count.
	second, err := svc.CastVote(context.Background(), opened, options[1].ID, "U2")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.OptionID, second.OptionID)

	tally, err := repo.Tally(context.Background(), election.ID)
	require.NoError(t, err)
	total := 0
	for _, row := range tally {
		total += row.Count
	}
	require.Equal(t, 1, total)
}

func TestCastVoteRejectsForeignOption(t *testing.T) {
	svc, _ := newTestService()
	event, err := svc.CreateEvent(context.Background(), CreateEventInput{GroupID: "G1", Name: "Assembly", OwnerID: "U1"})
	require.NoError(t, err)
	election, err := svc.CreateElection(context.Background(), "U1", event.ID, event.GroupID, CreateElectionInput{
		Question: "Adopt?",
		Options:  []string{"Yes", "No"},
	})
	require.NoError(t, err)
	opened, err := svc.OpenElection(context.Background(), "U1", election.ID)
	require.NoError(t, err)

	_, err = svc.CastVote(context.Background(), opened, "opt-elsewhere", "U2")
	require.ErrorIs(t, err, ErrUnknownOption)
}
