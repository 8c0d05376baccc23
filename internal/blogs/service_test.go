package blogs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	blogs         map[string]Blog
	posts         map[string]Post
	collaborators map[string]Collaborator
	seq           int
}

func newMemRepo() *memRepo {
	return &memRepo{blogs: map[string]Blog{}, posts: map[string]Post{}, collaborators: map[string]Collaborator{}}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateBlog(ctx context.Context, input CreateBlogInput) (*Blog, error) {
	b := Blog{ID: r.nextID("b"), GroupID: input.GroupID, Title: input.Title, Description: input.Description, Visibility: input.Visibility, OwnerID: input.OwnerID}
	r.blogs[b.ID] = b
	return &b, nil
}

func (r *memRepo) GetBlog(ctx context.Context, id string) (*Blog, error) {
	b, ok := r.blogs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (r *memRepo) ListBlogs(ctx context.Context, limit, offset int) ([]Blog, int, error) {
	var out []Blog
	for _, b := range r.blogs {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateBlog(ctx context.Context, id string, input UpdateBlogInput) (*Blog, error) {
	b, ok := r.blogs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	b.Title = input.Title
	b.Description = input.Description
	b.Visibility = input.Visibility
	r.blogs[id] = b
	return &b, nil
}

func (r *memRepo) DeleteBlog(ctx context.Context, id string) error {
	if _, ok := r.blogs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.blogs, id)
	return nil
}

func (r *memRepo) CreatePost(ctx context.Context, blogID, authorID string, input PostInput) (*Post, error) {
	p := Post{ID: r.nextID("p"), BlogID: blogID, Title: input.Title, Body: input.Body, AuthorID: authorID}
	r.posts[p.ID] = p
	return &p, nil
}

func (r *memRepo) GetPost(ctx context.Context, id string) (*Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) ListPosts(ctx context.Context, blogID string, publishedOnly bool) ([]Post, error) {
	var out []Post
	for _, p := range r.posts {
		if p.BlogID != blogID {
			continue
		}
		if publishedOnly && p.PublishedAt.IsZero() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Title = input.Title
	p.Body = input.Body
	r.posts[id] = p
	return &p, nil
}

func (r *memRepo) PublishPost(ctx context.Context, id string) (*Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}
	r.posts[id] = p
	return &p, nil
}

func (r *memRepo) DeletePost(ctx context.Context, id string) error {
	if _, ok := r.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *memRepo) AddCollaborator(ctx context.Context, blogID, userID, roleName string) (*Collaborator, error) {
	for _, c := range r.collaborators {
		if c.BlogID == blogID && c.UserID == userID {
			return nil, ErrCollaboratorExists
		}
	}
	c := Collaborator{ID: r.nextID("c"), BlogID: blogID, UserID: userID, RoleName: roleName}
	r.collaborators[c.ID] = c
	return &c, nil
}

func (r *memRepo) ListCollaborators(ctx context.Context, blogID string) ([]Collaborator, error) {
	var out []Collaborator
	for _, c := range r.collaborators {
		if c.BlogID == blogID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) RemoveCollaborator(ctx context.Context, id string) error {
	if _, ok := r.collaborators[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.collaborators, id)
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil, nil), repo
}

func TestCreateBlogValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateBlog(context.Background(), CreateBlogInput{Title: "  ", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrTitleRequired)

	_, err = svc.CreateBlog(context.Background(), CreateBlogInput{Title: "News", Visibility: "secret", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrBadVisibility)

	blog, err := svc.CreateBlog(context.Background(), CreateBlogInput{Title: "News", OwnerID: "U1"})
	require.NoError(t, err)
	require.Equal(t, "U1", blog.OwnerID)
}

func TestPublishPostKeepsOriginalTimestamp(t *testing.T) {
	svc, _ := newTestService()
	blog, err := svc.CreateBlog(context.Background(), CreateBlogInput{Title: "News", OwnerID: "U1"})
	require.NoError(t, err)
	post, err := svc.CreatePost(context.Background(), "U1", blog.ID, PostInput{Title: "Hello", Body: "First post"})
	require.NoError(t, err)
	require.True(t, post.PublishedAt.IsZero())

	published, err := svc.PublishPost(context.Background(), "U1", post.ID)
	require.NoError(t, err)
	require.False(t, published.PublishedAt.IsZero())

	again, err := svc.PublishPost(context.Background(), "U1", post.ID)
	require.NoError(t, err)
	require.Equal(t, published.PublishedAt, again.PublishedAt)
}

func TestListPostsFiltersDrafts(t *testing.T) {
	svc, _ := newTestService()
	blog, err := svc.CreateBlog(context.Background(), CreateBlogInput{Title: "News", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.CreatePost(context.Background(), "U1", blog.ID, PostInput{Title: "Draft", Body: "wip"})
	require.NoError(t, err)
	published, err := svc.CreatePost(context.Background(), "U1", blog.ID, PostInput{Title: "Live", Body: "done"})
	require.NoError(t, err)
	_, err = svc.PublishPost(context.Background(), "U1", published.ID)
	require.NoError(t, err)

	visible, err := svc.ListPosts(context.Background(), blog.ID, true)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, published.ID, visible[0].ID)

	all, err := svc.ListPosts(context.Background(), blog.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBlogCollaboratorAssignment(t *testing.T) {
	svc, _ := newTestService()
	blog, err := svc.CreateBlog(context.Background(), CreateBlogInput{Title: "News", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(context.Background(), "U1", blog.ID, "U2", " ")
	require.ErrorIs(t, err, ErrRoleNameRequired)

	c, err := svc.AddCollaborator(context.Background(), "U1", blog.ID, "U2", "Author")
	require.NoError(t, err)

	_, err = svc.AddCollaborator(context.Background(), "U1", blog.ID, "U2", "Editor")
	require.ErrorIs(t, err, ErrCollaboratorExists)

	require.NoError(t, svc.RemoveCollaborator(context.Background(), "U1", blog.ID, c.ID))
}
