package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// ErrMembershipExists indicates the user already has a membership record.
var ErrMembershipExists = errors.New("groups: membership already exists")

// ErrRelationshipExists indicates the parent/child pair is already linked or
// pending.
var ErrRelationshipExists = errors.New("groups: relationship already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const groupColumns = `id, name, description, COALESCE(visibility, ''), owner_id, created_at, updated_at`

// CreateGroup inserts a group.
func (r *Repository) CreateGroup(ctx context.Context, input CreateGroupInput) (*Group, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO groups (name, description, visibility, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+groupColumns,
		input.Name, input.Description, string(input.Visibility), input.OwnerID)
	return scanGroup(row)
}

// GetGroup fetches one group.
func (r *Repository) GetGroup(ctx context.Context, id string) (*Group, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return group, nil
}

// ListGroups returns a page of groups plus the total count.
func (r *Repository) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *group)
	}
	return list, total, rows.Err()
}

// UpdateGroup applies editable fields.
func (r *Repository) UpdateGroup(ctx context.Context, id string, input UpdateGroupInput) (*Group, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE groups SET name = $2, description = $3, visibility = $4, updated_at = NOW() WHERE id = $1 RETURNING `+groupColumns,
		id, input.Name, input.Description, string(input.Visibility))
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group; memberships and roles cascade.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const membershipColumns = `id, group_id, user_id, COALESCE(status, ''), created_at, updated_at`

// CreateMembership inserts a membership row in the given lifecycle status.
// A unique (group_id, user_id) index keeps one record per pair.
func (r *Repository) CreateMembership(ctx context.Context, groupID, userID string, status authz.MembershipStatus) (*Membership, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO memberships (group_id, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW()) RETURNING `+membershipColumns,
		groupID, userID, string(status))
	m, err := scanMembership(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrMembershipExists
		}
		return nil, err
	}
	return m, nil
}

// GetMembership fetches one membership row.
func (r *Repository) GetMembership(ctx context.Context, id string) (*Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListMemberships lists all membership rows of a group.
func (r *Repository) ListMemberships(ctx context.Context, groupID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE group_id = $1 ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// UpdateMembershipStatus moves a membership through its lifecycle.
func (r *Repository) UpdateMembershipStatus(ctx context.Context, id string, status authz.MembershipStatus) (*Membership, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE memberships SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+membershipColumns,
		id, string(status))
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// DeleteMembership removes a membership row (decline, leave, kick).
func (r *Repository) DeleteMembership(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const relationshipColumns = `id, parent_group_id, child_group_id, status, requested_by, created_at, updated_at`

// CreateRelationship inserts a pending parent/child request.
func (r *Repository) CreateRelationship(ctx context.Context, parentID, childID, requestedBy string) (*Relationship, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO group_relationships (parent_group_id, child_group_id, status, requested_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+relationshipColumns,
		parentID, childID, string(RelationshipPending), requestedBy)
	rel, err := scanRelationship(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRelationshipExists
		}
		return nil, err
	}
	return rel, nil
}

// GetRelationship fetches one relationship row.
func (r *Repository) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+relationshipColumns+` FROM group_relationships WHERE id = $1`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rel, nil
}

// ListRelationships lists relationships touching the group, either side.
func (r *Repository) ListRelationships(ctx context.Context, groupID string) ([]Relationship, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+relationshipColumns+` FROM group_relationships WHERE parent_group_id = $1 OR child_group_id = $1 ORDER BY created_at, id`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rel)
	}
	return list, rows.Err()
}

// UpdateRelationshipStatus resolves a pending request.
func (r *Repository) UpdateRelationshipStatus(ctx context.Context, id string, status RelationshipStatus) (*Relationship, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE group_relationships SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+relationshipColumns,
		id, string(status))
	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rel, nil
}

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	var visibility string
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &visibility, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Visibility = authz.Visibility(visibility)
	return &g, nil
}

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	var status string
	if err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Status = authz.MembershipStatus(status)
	return &m, nil
}

func scanRelationship(row pgx.Row) (*Relationship, error) {
	var rel Relationship
	var status string
	if err := row.Scan(&rel.ID, &rel.ParentGroupID, &rel.ChildGroupID, &status, &rel.RequestedBy, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	rel.Status = RelationshipStatus(status)
	return &rel, nil
}
