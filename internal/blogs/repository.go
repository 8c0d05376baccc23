package blogs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// ErrCollaboratorExists indicates the user already holds a role on the blog.
var ErrCollaboratorExists = errors.New("blogs: collaborator already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const blogColumns = `id, COALESCE(group_id::text, ''), title, COALESCE(description, ''), COALESCE(visibility, ''), owner_id, created_at, updated_at`

// CreateBlog inserts a blog.
func (r *Repository) CreateBlog(ctx context.Context, input CreateBlogInput) (*Blog, error) {
	group := pgtype.Text{String: input.GroupID, Valid: input.GroupID != ""}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO blogs (group_id, title, description, visibility, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING `+blogColumns,
		group, input.Title, input.Description, string(input.Visibility), input.OwnerID)
	return scanBlog(row)
}

// GetBlog fetches one blog.
func (r *Repository) GetBlog(ctx context.Context, id string) (*Blog, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+blogColumns+` FROM blogs WHERE id = $1`, id)
	blog, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return blog, nil
}

// ListBlogs returns a page of blogs plus the total count.
func (r *Repository) ListBlogs(ctx context.Context, limit, offset int) ([]Blog, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM blogs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+blogColumns+` FROM blogs ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Blog
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *blog)
	}
	return list, total, rows.Err()
}

// UpdateBlog applies editable fields.
func (r *Repository) UpdateBlog(ctx context.Context, id string, input UpdateBlogInput) (*Blog, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE blogs SET title = $2, description = $3, visibility = $4, updated_at = NOW() WHERE id = $1 RETURNING `+blogColumns,
		id, input.Title, input.Description, string(input.Visibility))
	blog, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return blog, nil
}

// DeleteBlog removes a blog; posts and collaborators cascade.
func (r *Repository) DeleteBlog(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const postColumns = `id, blog_id, title, body, author_id, published_at, created_at, updated_at`

// CreatePost inserts a draft post.
func (r *Repository) CreatePost(ctx context.Context, blogID, authorID string, input PostInput) (*Post, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO blog_posts (blog_id, title, body, author_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+postColumns,
		blogID, input.Title, input.Body, authorID)
	return scanPost(row)
}

// GetPost fetches one post.
func (r *Repository) GetPost(ctx context.Context, id string) (*Post, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

// ListPosts lists a blog's posts, newest first. When publishedOnly is set,
// drafts are filtered out.
func (r *Repository) ListPosts(ctx context.Context, blogID string, publishedOnly bool) ([]Post, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+postColumns+` FROM blog_posts WHERE blog_id = $1 AND (NOT $2 OR published_at IS NOT NULL) ORDER BY created_at DESC, id`,
		blogID, publishedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *post)
	}
	return list, rows.Err()
}

// UpdatePost applies editable fields.
func (r *Repository) UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE blog_posts SET title = $2, body = $3, updated_at = NOW() WHERE id = $1 RETURNING `+postColumns,
		id, input.Title, input.Body)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

// PublishPost stamps the post published now, once.
func (r *Repository) PublishPost(ctx context.Context, id string) (*Post, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE blog_posts SET published_at = COALESCE(published_at, NOW()), updated_at = NOW() WHERE id = $1 RETURNING `+postColumns,
		id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const collaboratorColumns = `id, blog_id, user_id, role_name, created_at`

// AddCollaborator assigns a named role. A unique (blog_id, user_id) index
// keeps one assignment per user.
func (r *Repository) AddCollaborator(ctx context.Context, blogID, userID, roleName string) (*Collaborator, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO blog_collaborators (blog_id, user_id, role_name, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING `+collaboratorColumns,
		blogID, userID, roleName)
	var c Collaborator
	if err := row.Scan(&c.ID, &c.BlogID, &c.UserID, &c.RoleName, &c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCollaboratorExists
		}
		return nil, err
	}
	return &c, nil
}

// ListCollaborators lists a blog's role assignments.
func (r *Repository) ListCollaborators(ctx context.Context, blogID string) ([]Collaborator, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+collaboratorColumns+` FROM blog_collaborators WHERE blog_id = $1 ORDER BY created_at, id`, blogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Collaborator
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.ID, &c.BlogID, &c.UserID, &c.RoleName, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// RemoveCollaborator deletes a role assignment.
func (r *Repository) RemoveCollaborator(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blog_collaborators WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanBlog(row pgx.Row) (*Blog, error) {
	var b Blog
	var visibility string
	if err := row.Scan(&b.ID, &b.GroupID, &b.Title, &b.Description, &visibility, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Visibility = authz.Visibility(visibility)
	return &b, nil
}

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	var published pgtype.Timestamptz
	if err := row.Scan(&p.ID, &p.BlogID, &p.Title, &p.Body, &p.AuthorID, &published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if published.Valid {
		p.PublishedAt = published.Time
	} else {
		p.PublishedAt = time.Time{}
	}
	return &p, nil
}
