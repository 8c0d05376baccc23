package amendments

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
	ErrTitleRequired    = errors.New("amendments: title required")
	ErrBodyRequired     = errors.New("amendments: body required")
	ErrBadVisibility    = errors.New("amendments: unknown visibility")
	ErrRoleNameRequired = errors.New("amendments: collaborator role name required")
)

// RepositoryPort defines data access methods for amendments.
type RepositoryPort interface {
	CreateAmendment(ctx context.Context, input CreateAmendmentInput) (*Amendment, error)
	GetAmendment(ctx context.Context, id string) (*Amendment, error)
	ListAmendments(ctx context.Context, groupID string, limit, offset int) ([]Amendment, int, error)
	UpdateAmendment(ctx context.Context, id string, input UpdateAmendmentInput) (*Amendment, error)
	DeleteAmendment(ctx context.Context, id string) error

	AddVersion(ctx context.Context, amendmentID, body, authorID, note string) (*Version, error)
	ListVersions(ctx context.Context, amendmentID string) ([]Version, error)
	GetVersion(ctx context.Context, amendmentID string, number int) (*Version, error)

	AddCollaborator(ctx context.Context, amendmentID, userID, roleName string) (*Collaborator, error)
	ListCollaborators(ctx context.Context, amendmentID string) ([]Collaborator, error)
	RemoveCollaborator(ctx context.Context, id string) error
}

// Service handles amendment business logic.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreateAmendment validates and stores an amendment with its first version.
func (s *Service) CreateAmendment(ctx context.Context, input CreateAmendmentInput) (*Amendment, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrBodyRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	amendment, err := s.repo.CreateAmendment(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.OwnerID, "amendment.create", amendment.ID, map[string]any{"group_id": input.GroupID})
	return amendment, nil
}

// GetAmendment fetches one amendment.
func (s *Service) GetAmendment(ctx context.Context, id string) (*Amendment, error) {
	return s.repo.GetAmendment(ctx, id)
}

// ListAmendments returns a page of amendments.
func (s *Service) ListAmendments(ctx context.Context, groupID string, limit, offset int) ([]Amendment, int, error) {
	return s.repo.ListAmendments(ctx, groupID, limit, offset)
}

// UpdateAmendment applies metadata fields.
func (s *Service) UpdateAmendment(ctx context.Context, actorID, id string, input UpdateAmendmentInput) (*Amendment, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	amendment, err := s.repo.UpdateAmendment(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "amendment.update", id, nil)
	return amendment, nil
}

// DeleteAmendment removes an amendment.
func (s *Service) DeleteAmendment(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteAmendment(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "amendment.delete", id, nil)
	return nil
}

// AddVersion appends a new body snapshot.
func (s *Service) AddVersion(ctx context.Context, actorID, amendmentID, body, note string) (*Version, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrBodyRequired
	}
	version, err := s.repo.AddVersion(ctx, amendmentID, body, actorID, note)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "amendment.version", amendmentID, map[string]any{"number": version.Number})
	return version, nil
}

// ListVersions lists an amendment's history.
func (s *Service) ListVersions(ctx context.Context, amendmentID string) ([]Version, error) {
	return s.repo.ListVersions(ctx, amendmentID)
}

// GetVersion fetches one numbered snapshot.
func (s *Service) GetVersion(ctx context.Context, amendmentID string, number int) (*Version, error) {
	return s.repo.GetVersion(ctx, amendmentID, number)
}

// AddCollaborator assigns a named role. The name is only matched against the
// amendment's roles at evaluation time, so an assignment may predate the role
// it references.
func (s *Service) AddCollaborator(ctx context.Context, actorID, amendmentID, userID, roleName string) (*Collaborator, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return nil, ErrRoleNameRequired
	}
	c, err := s.repo.AddCollaborator(ctx, amendmentID, userID, roleName)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "amendment.collaborator.add", amendmentID, map[string]any{"user_id": userID, "role": roleName})
	return c, nil
}

// ListCollaborators lists an amendment's role assignments.
func (s *Service) ListCollaborators(ctx context.Context, amendmentID string) ([]Collaborator, error) {
	return s.repo.ListCollaborators(ctx, amendmentID)
}

// RemoveCollaborator deletes a role assignment.
func (s *Service) RemoveCollaborator(ctx context.Context, actorID, amendmentID, collaboratorID string) error {
	if err := s.repo.RemoveCollaborator(ctx, collaboratorID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "amendment.collaborator.remove", amendmentID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "amendments", EntityID: entityID, Meta: meta}); err != nil {
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
