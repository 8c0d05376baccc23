package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const roleColumns = `id, name, description, scope, group_id, event_id, amendment_id, blog_id, created_at, updated_at`

// CreateRole inserts a new role. A unique index on (scope id, name) backs the
// by-name collaborator resolution.
func (r *Repository) CreateRole(ctx context.Context, role Role) (*Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, scope, group_id, event_id, amendment_id, blog_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING `+roleColumns,
		role.Name, role.Description, string(role.Scope),
		nullable(role.GroupID), nullable(role.EventID), nullable(role.AmendmentID), nullable(role.BlogID),
	)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return created, nil
}

// GetRole fetches one role by id.
func (r *Repository) GetRole(ctx context.Context, id string) (*Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

// ListRolesByScope lists the roles of one scope instance in creation order.
func (r *Repository) ListRolesByScope(ctx context.Context, scope authz.Scope, scopeID string) ([]Role, error) {
	column, err := scopeColumn(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE `+column+` = $1 ORDER BY created_at, id`, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *role)
	}
	return list, rows.Err()
}

// UpdateRole renames a role.
func (r *Repository) UpdateRole(ctx context.Context, id, name, description string) (*Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		id, name, description)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role. Rights cascade through the FK.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AddActionRight inserts a right row bound to the role's scope instance.
func (r *Repository) AddActionRight(ctx context.Context, right ActionRight) (*ActionRight, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO action_rights (role_id, resource, action, group_id, event_id, amendment_id, blog_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, role_id, resource, action, group_id, event_id, amendment_id, blog_id, created_at`,
		right.RoleID, string(right.Resource), string(right.Action),
		nullable(right.GroupID), nullable(right.EventID), nullable(right.AmendmentID), nullable(right.BlogID),
	)
	return scanRight(row)
}

// ListActionRights lists a role's rights in insertion order.
func (r *Repository) ListActionRights(ctx context.Context, roleID string) ([]ActionRight, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, resource, action, group_id, event_id, amendment_id, blog_id, created_at FROM action_rights WHERE role_id = $1 ORDER BY created_at, id`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ActionRight
	for rows.Next() {
		right, err := scanRight(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *right)
	}
	return list, rows.Err()
}

// DeleteActionRight removes one right from a role.
func (r *Repository) DeleteActionRight(ctx context.Context, roleID, rightID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM action_rights WHERE id = $1 AND role_id = $2`, rightID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	var scope string
	var groupID, eventID, amendmentID, blogID pgtype.Text
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &scope,
		&groupID, &eventID, &amendmentID, &blogID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	role.Scope = authz.Scope(scope)
	role.GroupID = groupID.String
	role.EventID = eventID.String
	role.AmendmentID = amendmentID.String
	role.BlogID = blogID.String
	return &role, nil
}

func scanRight(row pgx.Row) (*ActionRight, error) {
	var right ActionRight
	var resource, action string
	var groupID, eventID, amendmentID, blogID pgtype.Text
	if err := row.Scan(&right.ID, &right.RoleID, &resource, &action,
		&groupID, &eventID, &amendmentID, &blogID, &right.CreatedAt); err != nil {
		return nil, err
	}
	right.Resource = authz.Resource(resource)
	right.Action = authz.Action(action)
	right.GroupID = groupID.String
	right.EventID = eventID.String
	right.AmendmentID = amendmentID.String
	right.BlogID = blogID.String
	return &right, nil
}

func scopeColumn(scope authz.Scope) (string, error) {
	switch scope {
	case authz.ScopeGroup:
		return "group_id", nil
	case authz.ScopeEvent:
		return "event_id", nil
	case authz.ScopeAmendment:
		return "amendment_id", nil
	case authz.ScopeBlog:
		return "blog_id", nil
	}
	return "", ErrScopeRequired
}

func nullable(id string) pgtype.Text {
	return pgtype.Text{String: id, Valid: id != ""}
}
