package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/civitas-platform/civitas/internal/messages"
	"github.com/civitas-platform/civitas/internal/todos"
)

// Validation errors surfaced to handlers.
var (
	ErrUserRequired    = errors.New("notifications: user required")
	ErrSubjectRequired = errors.New("notifications: subject required")
)

// RepositoryPort defines data access methods for notifications.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput) (*Notification, error)
	Get(ctx context.Context, id string) (*Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Enqueuer hands stored notifications to the background dispatcher.
type Enqueuer interface {
	EnqueueNotificationDispatch(ctx context.Context, notificationID string) error
}

// Service handles notification business logic and feeds the other modules'
// notify hooks.
type Service struct {
	repo     RepositoryPort
	enqueuer Enqueuer
	group    singleflight.Group
	logger   *slog.Logger
}

var (
	_ todos.Notifier    = (*Service)(nil)
	_ messages.Notifier = (*Service)(nil)
)

// NewService builds Service instance.
func NewService(repo RepositoryPort, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger}
}

// Create validates and stores a notification, then hands it to the
// dispatcher. A failed enqueue keeps the stored notification; the daily
// digest picks up anything the dispatcher missed.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	if input.UserID == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, ErrSubjectRequired
	}
	if input.Kind == "" {
		input.Kind = KindMessage
	}
	notification, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueNotificationDispatch(ctx, notification.ID); err != nil {
			s.logger.Warn("notification dispatch enqueue",
				slog.String("notification_id", notification.ID), slog.Any("error", err))
		}
	}
	return notification, nil
}

// List returns a page of the user's notifications.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	return s.repo.List(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns the user's unread total. Concurrent requests for the
// same user collapse into a single query.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.repo.UnreadCount(ctx, userID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead marks every unread notification of the user and returns how
// many it touched.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// NotifyAssignment records a todo assignment for the assignee.
func (s *Service) NotifyAssignment(ctx context.Context, todo *todos.Todo, assigneeID, assignedBy string) {
	_, err := s.Create(ctx, CreateInput{
		UserID:  assigneeID,
		Kind:    KindAssignment,
		Subject: fmt.Sprintf("You were assigned: %s", todo.Title),
		Body:    fmt.Sprintf("%s assigned you the todo %q.", assignedBy, todo.Title),
	})
	if err != nil {
		s.logger.Warn("assignment notification", slog.String("todo_id", todo.ID), slog.Any("error", err))
	}
}

// NotifyMessage records a new thread message for every other participant.
func (s *Service) NotifyMessage(ctx context.Context, thread *messages.Thread, message *messages.Message, recipientIDs []string) {
	for _, userID := range recipientIDs {
		_, err := s.Create(ctx, CreateInput{
			UserID:  userID,
			Kind:    KindMessage,
			Subject: fmt.Sprintf("New message in %s", thread.Subject),
			Body:    message.Body,
		})
		if err != nil {
			s.logger.Warn("message notification",
				slog.String("thread_id", thread.ID), slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}
