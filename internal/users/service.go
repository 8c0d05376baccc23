package users

import (
	"context"
	"strings"

	"github.com/civitas-platform/civitas/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*User, error)
	DeactivateUser(ctx context.Context, id string) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	return s.repo.ListUsers(ctx, limit, offset)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateProfile validates and applies profile changes.
func (s *Service) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, httpx.ErrValidation
	}
	return s.repo.UpdateProfile(ctx, id, input)
}

// Deactivate disables the account.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.DeactivateUser(ctx, id)
}
