package blogs

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
	ErrTitleRequired    = errors.New("blogs: title required")
	ErrBodyRequired     = errors.New("blogs: post body required")
	ErrBadVisibility    = errors.New("blogs: unknown visibility")
	ErrRoleNameRequired = errors.New("blogs: collaborator role name required")
)

// RepositoryPort defines data access methods for blogs.
type RepositoryPort interface {
	CreateBlog(ctx context.Context, input CreateBlogInput) (*Blog, error)
	GetBlog(ctx context.Context, id string) (*Blog, error)
	ListBlogs(ctx context.Context, limit, offset int) ([]Blog, int, error)
	UpdateBlog(ctx context.Context, id string, input UpdateBlogInput) (*Blog, error)
	DeleteBlog(ctx context.Context, id string) error

	CreatePost(ctx context.Context, blogID, authorID string, input PostInput) (*Post, error)
	GetPost(ctx context.Context, id string) (*Post, error)
	ListPosts(ctx context.Context, blogID string, publishedOnly bool) ([]Post, error)
	UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error)
	PublishPost(ctx context.Context, id string) (*Post, error)
	DeletePost(ctx context.Context, id string) error

	AddCollaborator(ctx context.Context, blogID, userID, roleName string) (*Collaborator, error)
	ListCollaborators(ctx context.Context, blogID string) ([]Collaborator, error)
	RemoveCollaborator(ctx context.Context, id string) error
}

// Service handles blog business logic.
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

// CreateBlog validates and stores a blog.
func (s *Service) CreateBlog(ctx context.Context, input CreateBlogInput) (*Blog, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	blog, err := s.repo.CreateBlog(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.OwnerID, "blog.create", blog.ID, nil)
	return blog, nil
}

// GetBlog fetches one blog.
func (s *Service) GetBlog(ctx context.Context, id string) (*Blog, error) {
	return s.repo.GetBlog(ctx, id)
}

// ListBlogs returns a page of blogs.
func (s *Service) ListBlogs(ctx context.Context, limit, offset int) ([]Blog, int, error) {
	return s.repo.ListBlogs(ctx, limit, offset)
}

// UpdateBlog applies editable fields.
func (s *Service) UpdateBlog(ctx context.Context, actorID, id string, input UpdateBlogInput) (*Blog, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	blog, err := s.repo.UpdateBlog(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "blog.update", id, nil)
	return blog, nil
}

// DeleteBlog removes a blog.
func (s *Service) DeleteBlog(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteBlog(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "blog.delete", id, nil)
	return nil
}

// CreatePost stores a draft post.
func (s *Service) CreatePost(ctx context.Context, actorID, blogID string, input PostInput) (*Post, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrBodyRequired
	}
	post, err := s.repo.CreatePost(ctx, blogID, actorID, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "blog.post.create", post.ID, map[string]any{"blog_id": blogID})
	return post, nil
}

// GetPost fetches one post.
func (s *Service) GetPost(ctx context.Context, id string) (*Post, error) {
	return s.repo.GetPost(ctx, id)
}

// ListPosts lists a blog's posts.
func (s *Service) ListPosts(ctx context.Context, blogID string, publishedOnly bool) ([]Post, error) {
	return s.repo.ListPosts(ctx, blogID, publishedOnly)
}

// UpdatePost applies editable fields.
func (s *Service) UpdatePost(ctx context.Context, actorID, id string, input PostInput) (*Post, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrBodyRequired
	}
	post, err := s.repo.UpdatePost(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "blog.post.update", id, nil)
	return post, nil
}

// PublishPost makes a draft visible. Publishing twice keeps the original
// timestamp.
func (s *Service) PublishPost(ctx context.Context, actorID, id string) (*Post, error) {
	post, err := s.repo.PublishPost(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "blog.post.publish", id, nil)
	return post, nil
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "blog.post.delete", id, nil)
	return nil
}

// AddCollaborator assigns a named role, matched against the blog's roles at
// evaluation time.
func (s *Service) AddCollaborator(ctx context.Context, actorID, blogID, userID, roleName string) (*Collaborator, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return nil, ErrRoleNameRequired
	}
	c, err := s.repo.AddCollaborator(ctx, blogID, userID, roleName)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "blog.collaborator.add", blogID, map[string]any{"user_id": userID, "role": roleName})
	return c, nil
}

// ListCollaborators lists a blog's role assignments.
func (s *Service) ListCollaborators(ctx context.Context, blogID string) ([]Collaborator, error) {
	return s.repo.ListCollaborators(ctx, blogID)
}

// RemoveCollaborator deletes a role assignment.
func (s *Service) RemoveCollaborator(ctx context.Context, actorID, blogID, collaboratorID string) error {
	if err := s.repo.RemoveCollaborator(ctx, collaboratorID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "blog.collaborator.remove", blogID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "blogs", EntityID: entityID, Meta: meta}); err != nil {
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
