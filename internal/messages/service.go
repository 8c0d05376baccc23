package messages

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/civitas-platform/civitas/internal/shared"
)

// Validation errors surfaced to handlers.
var (
	ErrSubjectRequired      = errors.New("messages: subject required")
	ErrBodyRequired         = errors.New("messages: body required")
	ErrParticipantsRequired = errors.New("messages: at least one other participant required")
	ErrNotParticipant       = errors.New("messages: not a thread participant")
)

// RepositoryPort defines data access methods for messaging.
type RepositoryPort interface {
	CreateThread(ctx context.Context, input CreateThreadInput) (*Thread, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, userID string, limit, offset int) ([]Thread, int, error)
	IsParticipant(ctx context.Context, threadID, userID string) (bool, error)
	ListParticipants(ctx context.Context, threadID string) ([]string, error)
	AddParticipant(ctx context.Context, threadID, userID string) error
	CreateMessage(ctx context.Context, threadID, senderID, body string) (*Message, error)
	ListMessages(ctx context.Context, threadID string, limit, offset int) ([]Message, error)
}

// Notifier is told about new messages so recipients hear about them.
type Notifier interface {
	NotifyMessage(ctx context.Context, thread *Thread, message *Message, recipientIDs []string)
}

// Service handles messaging business logic. Thread access is pure
// participant membership; role grants do not apply to private mail.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// CreateThread validates and stores a thread. The creator is always a
// participant.
func (s *Service) CreateThread(ctx context.Context, input CreateThreadInput) (*Thread, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	if input.Subject == "" {
		return nil, ErrSubjectRequired
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrBodyRequired
	}
	participants := make([]string, 0, len(input.Participants)+1)
	seen := map[string]bool{input.CreatedBy: true}
	participants = append(participants, input.CreatedBy)
	for _, id := range input.Participants {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return nil, ErrParticipantsRequired
	}
	input.Participants = participants
	thread, err := s.repo.CreateThread(ctx, input)
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread fetches a thread the user participates in.
func (s *Service) GetThread(ctx context.Context, userID, threadID string) (*Thread, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}
	return thread, nil
}

// ListThreads lists the user's threads.
func (s *Service) ListThreads(ctx context.Context, userID string, limit, offset int) ([]Thread, int, error) {
	return s.repo.ListThreads(ctx, userID, limit, offset)
}

// ListParticipants lists the thread's members, for participants only.
func (s *Service) ListParticipants(ctx context.Context, userID, threadID string) ([]string, error) {
	if err := s.requireParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListParticipants(ctx, threadID)
}

// AddParticipant lets an existing participant pull someone in.
func (s *Service) AddParticipant(ctx context.Context, actorID, threadID, userID string) error {
	if err := s.requireParticipant(ctx, threadID, actorID); err != nil {
		return err
	}
	return s.repo.AddParticipant(ctx, threadID, userID)
}

// Post appends a message and notifies the other participants.
func (s *Service) Post(ctx context.Context, senderID, threadID, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrBodyRequired
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, threadID, senderID); err != nil {
		return nil, err
	}
	message, err := s.repo.CreateMessage(ctx, threadID, senderID, body)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		participants, err := s.repo.ListParticipants(ctx, threadID)
		if err != nil {
			s.logger.Warn("participant load for notify", slog.Any("error", err))
		} else {
			recipients := make([]string, 0, len(participants))
			for _, id := range participants {
				if id != senderID {
					recipients = append(recipients, id)
				}
			}
			s.notifier.NotifyMessage(ctx, thread, message, recipients)
		}
	}
	return message, nil
}

// ListMessages lists a thread's messages, for participants only.
func (s *Service) ListMessages(ctx context.Context, userID, threadID string, limit, offset int) ([]Message, error) {
	if err := s.requireParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, threadID, limit, offset)
}

func (s *Service) requireParticipant(ctx context.Context, threadID, userID string) error {
	ok, err := s.repo.IsParticipant(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if !ok {
		// Outsiders see threads as missing, not forbidden.
		return shared.ErrNotFound
	}
	return nil
}
