package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Lifecycle errors surfaced to handlers.
var (
	ErrNameRequired     = errors.New("events: name required")
	ErrBadVisibility    = errors.New("events: unknown visibility")
	ErrBadTimeRange     = errors.New("events: ends_at before starts_at")
	ErrQuestionRequired = errors.New("events: election question required")
	ErrOptionsRequired  = errors.New("events: election needs at least two options")
	ErrElectionNotDraft = errors.New("events: election already opened")
	ErrElectionNotOpen  = errors.New("events: election not open")
	ErrUnknownOption    = errors.New("events: option does not belong to election")
	ErrElectionBusy     = errors.New("events: election is being closed, retry")
)

// RepositoryPort defines data access methods for events.
type RepositoryPort interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, groupID string, limit, offset int) ([]Event, int, error)
	UpdateEvent(ctx context.Context, id string, input UpdateEventInput) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error

	CreateParticipation(ctx context.Context, eventID, userID string, status authz.ParticipantStatus, roleID string) (*Participation, error)
	GetParticipation(ctx context.Context, id string) (*Participation, error)
	ListParticipations(ctx context.Context, eventID string) ([]Participation, error)
	UpdateParticipationStatus(ctx context.Context, id string, status authz.ParticipantStatus) (*Participation, error)
	DeleteParticipation(ctx context.Context, id string) error

	CreateAgendaItem(ctx context.Context, eventID string, input AgendaItemInput) (*AgendaItem, error)
	ListAgendaItems(ctx context.Context, eventID string) ([]AgendaItem, error)
	UpdateAgendaItem(ctx context.Context, id string, input AgendaItemInput) (*AgendaItem, error)
	DeleteAgendaItem(ctx context.Context, id string) error

	CreateSpeaker(ctx context.Context, eventID string, input SpeakerInput) (*Speaker, error)
	ListSpeakers(ctx context.Context, eventID string) ([]Speaker, error)
	DeleteSpeaker(ctx context.Context, id string) error

	CreateElection(ctx context.Context, eventID, groupID string, input CreateElectionInput) (*Election, error)
	GetElection(ctx context.Context, id string) (*Election, error)
	ListElections(ctx context.Context, eventID string) ([]Election, error)
	UpdateElectionState(ctx context.Context, id string, state authz.ElectionState) (*Election, error)
	ListElectionOptions(ctx context.Context, electionID string) ([]ElectionOption, error)
	CreateVote(ctx context.Context, electionID, optionID, voterID string) (*Vote, error)
	GetVote(ctx context.Context, electionID, voterID string) (*Vote, error)
	Tally(ctx context.Context, electionID string) ([]TallyRow, error)
}

// Locker is the slice of the redis client used to serialize election close.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service handles event business logic.
type Service struct {
	repo        RepositoryPort
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
	locker      Locker
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, idempotency *shared.IdempotencyStore, locker Locker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idempotency, locker: locker, logger: logger}
}

// CreateEvent validates and stores an event. The creator joins the roster as
// admin so the event starts with a roster admin in place.
func (s *Service) CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	if !input.EndsAt.IsZero() && input.EndsAt.Before(input.StartsAt) {
		return nil, ErrBadTimeRange
	}
	event, err := s.repo.CreateEvent(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.CreateParticipation(ctx, event.ID, input.OwnerID, authz.ParticipantAdmin, ""); err != nil && !errors.Is(err, ErrParticipationExists) {
		return nil, err
	}
	s.recordAudit(ctx, input.OwnerID, "event.create", event.ID, map[string]any{"group_id": input.GroupID})
	return event, nil
}

// GetEvent fetches one event.
func (s *Service) GetEvent(ctx context.Context, id string) (*Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// ListEvents returns a page of events, optionally scoped to a group.
func (s *Service) ListEvents(ctx context.Context, groupID string, limit, offset int) ([]Event, int, error) {
	return s.repo.ListEvents(ctx, groupID, limit, offset)
}

// UpdateEvent applies editable fields.
func (s *Service) UpdateEvent(ctx context.Context, actorID, id string, input UpdateEventInput) (*Event, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	if !input.EndsAt.IsZero() && input.EndsAt.Before(input.StartsAt) {
		return nil, ErrBadTimeRange
	}
	event, err := s.repo.UpdateEvent(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "event.update", id, nil)
	return event, nil
}

// DeleteEvent removes an event.
func (s *Service) DeleteEvent(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "event.delete", id, nil)
	return nil
}

// AddParticipant puts a user on the roster.
func (s *Service) AddParticipant(ctx context.Context, actorID, eventID, userID string, status authz.ParticipantStatus, roleID string) (*Participation, error) {
	if status == "" {
		status = authz.ParticipantRegular
	}
	p, err := s.repo.CreateParticipation(ctx, eventID, userID, status, roleID)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "participation.add", p.ID, map[string]any{"event_id": eventID, "user_id": userID})
	return p, nil
}

// GetParticipation fetches one roster entry.
func (s *Service) GetParticipation(ctx context.Context, id string) (*Participation, error) {
	return s.repo.GetParticipation(ctx, id)
}

// Roster lists an event's participants.
func (s *Service) Roster(ctx context.Context, eventID string) ([]Participation, error) {
	return s.repo.ListParticipations(ctx, eventID)
}

// RosterEntries converts the roster into the shape the permission rules
// evaluate.
func (s *Service) RosterEntries(ctx context.Context, eventID string) ([]authz.RosterEntry, error) {
	roster, err := s.repo.ListParticipations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entries := make([]authz.RosterEntry, 0, len(roster))
	for _, p := range roster {
		entries = append(entries, authz.RosterEntry{UserID: p.UserID, Status: p.Status})
	}
	return entries, nil
}

// SetParticipantStatus flips a roster entry between admin and regular.
func (s *Service) SetParticipantStatus(ctx context.Context, actorID, participationID string, status authz.ParticipantStatus) (*Participation, error) {
	p, err := s.repo.UpdateParticipationStatus(ctx, participationID, status)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "participation.status", participationID, map[string]any{"status": string(status)})
	return p, nil
}

// RemoveParticipant takes a user off the roster.
func (s *Service) RemoveParticipant(ctx context.Context, actorID, participationID string) error {
	if err := s.repo.DeleteParticipation(ctx, participationID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "participation.remove", participationID, nil)
	return nil
}

// AddAgendaItem appends a programme slot.
func (s *Service) AddAgendaItem(ctx context.Context, actorID, eventID string, input AgendaItemInput) (*AgendaItem, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrNameRequired
	}
	item, err := s.repo.CreateAgendaItem(ctx, eventID, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "agenda.add", item.ID, map[string]any{"event_id": eventID})
	return item, nil
}

// ListAgenda lists an event's programme.
func (s *Service) ListAgenda(ctx context.Context, eventID string) ([]AgendaItem, error) {
	return s.repo.ListAgendaItems(ctx, eventID)
}

// UpdateAgendaItem applies editable fields.
func (s *Service) UpdateAgendaItem(ctx context.Context, actorID, id string, input AgendaItemInput) (*AgendaItem, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrNameRequired
	}
	item, err := s.repo.UpdateAgendaItem(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "agenda.update", id, nil)
	return item, nil
}

// RemoveAgendaItem deletes a programme slot.
func (s *Service) RemoveAgendaItem(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteAgendaItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "agenda.remove", id, nil)
	return nil
}

// AddSpeaker attaches a speaker to an event.
func (s *Service) AddSpeaker(ctx context.Context, actorID, eventID string, input SpeakerInput) (*Speaker, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	speaker, err := s.repo.CreateSpeaker(ctx, eventID, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "speaker.add", speaker.ID, map[string]any{"event_id": eventID})
	return speaker, nil
}

// ListSpeakers lists an event's speakers.
func (s *Service) ListSpeakers(ctx context.Context, eventID string) ([]Speaker, error) {
	return s.repo.ListSpeakers(ctx, eventID)
}

// RemoveSpeaker removes a speaker.
func (s *Service) RemoveSpeaker(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteSpeaker(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "speaker.remove", id, nil)
	return nil
}

// CreateElection validates and stores a draft election with its options.
func (s *Service) CreateElection(ctx context.Context, actorID, eventID, groupID string, input CreateElectionInput) (*Election, error) {
	input.Question = strings.TrimSpace(input.Question)
	if input.Question == "" {
		return nil, ErrQuestionRequired
	}
	options := make([]string, 0, len(input.Options))
	for _, o := range input.Options {
		o = strings.TrimSpace(o)
		if o != "" {
			options = append(options, o)
		}
	}
	if len(options) < 2 {
		return nil, ErrOptionsRequired
	}
	input.Options = options
	election, err := s.repo.CreateElection(ctx, eventID, groupID, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "election.create", election.ID, map[string]any{"event_id": eventID})
	return election, nil
}

// GetElection fetches one election.
func (s *Service) GetElection(ctx context.Context, id string) (*Election, error) {
	return s.repo.GetElection(ctx, id)
}

// ListElections lists an event's elections.
func (s *Service) ListElections(ctx context.Context, eventID string) ([]Election, error) {
	return s.repo.ListElections(ctx, eventID)
}

// ListElectionOptions lists an election's options.
func (s *Service) ListElectionOptions(ctx context.Context, electionID string) ([]ElectionOption, error) {
	return s.repo.ListElectionOptions(ctx, electionID)
}

// OpenElection moves a draft election to open. Only open elections accept
// votes.
func (s *Service) OpenElection(ctx context.Context, actorID, id string) (*Election, error) {
	election, err := s.repo.GetElection(ctx, id)
	if err != nil {
		return nil, err
	}
	if election.State != authz.ElectionDraft {
		return nil, ErrElectionNotDraft
	}
	updated, err := s.repo.UpdateElectionState(ctx, id, authz.ElectionOpen)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "election.open", id, nil)
	return updated, nil
}

// CloseElection finishes an open election. A short redis lock keeps the state
// flip and the final tally read from racing concurrent vote casts.
func (s *Service) CloseElection(ctx context.Context, actorID, id string) (*Election, []TallyRow, error) {
	election, err := s.repo.GetElection(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if election.State != authz.ElectionOpen {
		return nil, nil, ErrElectionNotOpen
	}
	if s.locker != nil {
		key := shared.ElectionLockKey(id)
		ok, err := s.locker.SetNX(ctx, key, actorID, 30*time.Second).Result()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, ErrElectionBusy
		}
		defer func() {
			if err := s.locker.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
				s.logger.Warn("election lock release", slog.Any("error", err))
			}
		}()
	}
	updated, err := s.repo.UpdateElectionState(ctx, id, authz.ElectionFinished)
	if err != nil {
		return nil, nil, err
	}
	tally, err := s.repo.Tally(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.recordAudit(ctx, actorID, "election.close", id, nil)
	return updated, tally, nil
}

// CastVote records a ballot. Casting is idempotent per voter: a repeat cast
// returns the existing ballot instead of failing or double counting.
func (s *Service) CastVote(ctx context.Context, election *Election, optionID, voterID string) (*Vote, error) {
	if election.State != authz.ElectionOpen {
		return nil, ErrElectionNotOpen
	}
	options, err := s.repo.ListElectionOptions(ctx, election.ID)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, o := range options {
		if o.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrUnknownOption
	}
	key := fmt.Sprintf("vote:%s:%s", election.ID, voterID)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "elections"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.repo.GetVote(ctx, election.ID, voterID)
			}
			return nil, err
		}
	}
	vote, err := s.repo.CreateVote(ctx, election.ID, optionID, voterID)
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return s.repo.GetVote(ctx, election.ID, voterID)
		}
		if s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, key); derr != nil {
				s.logger.Warn("idempotency rollback", slog.Any("error", derr))
			}
		}
		return nil, err
	}
	s.recordAudit(ctx, voterID, "election.vote", election.ID, nil)
	return vote, nil
}

// Tally counts votes per option.
func (s *Service) Tally(ctx context.Context, electionID string) ([]TallyRow, error) {
	return s.repo.Tally(ctx, electionID)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "events", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func validVisibility(v authz.Visibility) bool {
	switch v {
	case "", authz.VisibilityPublic, authz.VisibilityAuthenticated, authz.VisibilityPrivate:
		return true
	}
	return false
}
