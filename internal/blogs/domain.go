package blogs

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Blog is a publication owned by a user or run on behalf of a group.
type Blog struct {
	ID          string
	GroupID     string
	Title       string
	Description string
	Visibility  authz.Visibility
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Post is one article. Draft posts carry a zero PublishedAt.
type Post struct {
	ID          string
	BlogID      string
	Title       string
	Body        string
	AuthorID    string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Collaborator assigns a user a role on a blog by role NAME, matched against
// the blog's roles at evaluation time.
type Collaborator struct {
	ID        string
	BlogID    string
	UserID    string
	RoleName  string
	CreatedAt time.Time
}

// CreateBlogInput describes a new blog.
type CreateBlogInput struct {
	GroupID     string
	Title       string
	Description string
	Visibility  authz.Visibility
	OwnerID     string
}

// UpdateBlogInput carries editable blog fields.
type UpdateBlogInput struct {
	Title       string
	Description string
	Visibility  authz.Visibility
}

// PostInput describes a new or updated post.
type PostInput struct {
	Title string
	Body  string
}
