package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Validation errors surfaced to handlers.
var (
	ErrNameRequired  = errors.New("roles: name required")
	ErrNameTaken     = errors.New("roles: name already used in this scope")
	ErrScopeRequired = errors.New("roles: exactly one scope id required")
	ErrBadCatalog    = errors.New("roles: unknown resource or action")
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	CreateRole(ctx context.Context, role Role) (*Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRolesByScope(ctx context.Context, scope authz.Scope, scopeID string) ([]Role, error)
	UpdateRole(ctx context.Context, id, name, description string) (*Role, error)
	DeleteRole(ctx context.Context, id string) error
	AddActionRight(ctx context.Context, right ActionRight) (*ActionRight, error)
	ListActionRights(ctx context.Context, roleID string) ([]ActionRight, error)
	DeleteActionRight(ctx context.Context, roleID, rightID string) error
}

// Service handles role business logic. It enforces the structural rules the
// evaluation side depends on: one scope instance per role, unique names within
// a scope instance, and every right bound to its role's own scope.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateRole validates and stores a new role definition.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	scope, err := scopeOf(input.GroupID, input.EventID, input.AmendmentID, input.BlogID)
	if err != nil {
		return nil, err
	}
	role := Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Scope:       scope,
		GroupID:     input.GroupID,
		EventID:     input.EventID,
		AmendmentID: input.AmendmentID,
		BlogID:      input.BlogID,
	}
	return s.repo.CreateRole(ctx, role)
}

// GetRole fetches one role.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns all roles of a scope instance.
func (s *Service) ListRoles(ctx context.Context, scope authz.Scope, scopeID string) ([]Role, error) {
	if !scope.IsValid() || scopeID == "" {
		return nil, ErrScopeRequired
	}
	return s.repo.ListRolesByScope(ctx, scope, scopeID)
}

// UpdateRole renames a role. The scope binding never changes after creation.
func (s *Service) UpdateRole(ctx context.Context, id, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role and its rights.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	return s.repo.DeleteRole(ctx, id)
}

// AddActionRight attaches a right to the role, bound to the role's own scope
// instance. Rights can never point at a different scope than their role.
func (s *Service) AddActionRight(ctx context.Context, roleID string, input CreateRightInput) (*ActionRight, error) {
	if !input.Resource.IsValid() || !input.Action.IsValid() {
		return nil, ErrBadCatalog
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	right := ActionRight{
		RoleID:      role.ID,
		Resource:    input.Resource,
		Action:      input.Action,
		GroupID:     role.GroupID,
		EventID:     role.EventID,
		AmendmentID: role.AmendmentID,
		BlogID:      role.BlogID,
	}
	return s.repo.AddActionRight(ctx, right)
}

// ListActionRights returns the rights of a role.
func (s *Service) ListActionRights(ctx context.Context, roleID string) ([]ActionRight, error) {
	return s.repo.ListActionRights(ctx, roleID)
}

// DeleteActionRight removes one right from a role.
func (s *Service) DeleteActionRight(ctx context.Context, roleID, rightID string) error {
	return s.repo.DeleteActionRight(ctx, roleID, rightID)
}

func scopeOf(groupID, eventID, amendmentID, blogID string) (authz.Scope, error) {
	var scope authz.Scope
	count := 0
	if groupID != "" {
		scope = authz.ScopeGroup
		count++
	}
	if eventID != "" {
		scope = authz.ScopeEvent
		count++
	}
	if amendmentID != "" {
		scope = authz.ScopeAmendment
		count++
	}
	if blogID != "" {
		scope = authz.ScopeBlog
		count++
	}
	if count != 1 {
		return "", fmt.Errorf("%w: got %d", ErrScopeRequired, count)
	}
	return scope, nil
}
