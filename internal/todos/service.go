package todos

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Validation errors surfaced to handlers.
var (
	ErrTitleRequired = errors.New("todos: title required")
	ErrBadStatus     = errors.New("todos: unknown status")
	ErrBadVisibility = errors.New("todos: unknown visibility")
)

// RepositoryPort defines data access methods for todos.
type RepositoryPort interface {
	CreateTodo(ctx context.Context, input CreateTodoInput) (*Todo, error)
	GetTodo(ctx context.Context, id string) (*Todo, error)
	ListTodos(ctx context.Context, groupID string, limit, offset int) ([]Todo, int, error)
	UpdateTodo(ctx context.Context, id string, input UpdateTodoInput) (*Todo, error)
	DeleteTodo(ctx context.Context, id string) error

	CreateAssignment(ctx context.Context, todoID, userID, assignedBy string) (*Assignment, error)
	ListAssignments(ctx context.Context, todoID string) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
}

// Notifier is told about new assignments so assignees hear about them.
type Notifier interface {
	NotifyAssignment(ctx context.Context, todo *Todo, assigneeID, assignedBy string)
}

// Service handles todo business logic.
type Service struct {
	repo     RepositoryPort
	audit    *shared.AuditLogger
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// CreateTodo validates and stores a todo.
func (s *Service) CreateTodo(ctx context.Context, input CreateTodoInput) (*Todo, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	todo, err := s.repo.CreateTodo(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.OwnerID, "todo.create", todo.ID, map[string]any{"group_id": input.GroupID})
	return todo, nil
}

// GetTodo fetches one todo.
func (s *Service) GetTodo(ctx context.Context, id string) (*Todo, error) {
	return s.repo.GetTodo(ctx, id)
}

// ListTodos returns a page of todos.
func (s *Service) ListTodos(ctx context.Context, groupID string, limit, offset int) ([]Todo, int, error) {
	return s.repo.ListTodos(ctx, groupID, limit, offset)
}

// UpdateTodo applies editable fields.
func (s *Service) UpdateTodo(ctx context.Context, actorID, id string, input UpdateTodoInput) (*Todo, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if input.Status != TodoOpen && input.Status != TodoDone {
		return nil, ErrBadStatus
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	todo, err := s.repo.UpdateTodo(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "todo.update", id, nil)
	return todo, nil
}

// DeleteTodo removes a todo.
func (s *Service) DeleteTodo(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteTodo(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "todo.delete", id, nil)
	return nil
}

// Assign hands the todo to a user and notifies them.
func (s *Service) Assign(ctx context.Context, actorID, todoID, userID string) (*Assignment, error) {
	todo, err := s.repo.GetTodo(ctx, todoID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.CreateAssignment(ctx, todoID, userID, actorID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifyAssignment(ctx, todo, userID, actorID)
	}
	s.recordAudit(ctx, actorID, "todo.assign", todoID, map[string]any{"user_id": userID})
	return a, nil
}

// ListAssignments lists a todo's assignees.
func (s *Service) ListAssignments(ctx context.Context, todoID string) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, todoID)
}

// Unassign removes an assignment.
func (s *Service) Unassign(ctx context.Context, actorID, todoID, assignmentID string) error {
	if err := s.repo.DeleteAssignment(ctx, assignmentID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "todo.unassign", todoID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "todos", EntityID: entityID, Meta: meta}); err != nil {
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
