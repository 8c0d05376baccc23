package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads grant graphs from PostgreSQL in the exact nested shapes
// the predicates require.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ GrantLoader = (*Repository)(nil)

// PrincipalGrants fetches the user's memberships (with each group's full role
// and right set) and participations (with the single assigned role's rights).
func (r *Repository) PrincipalGrants(ctx context.Context, userID string) (*PrincipalGrants, error) {
	grants := &PrincipalGrants{UserID: userID}

	memberships, err := r.loadMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants.Memberships = memberships

	participations, err := r.loadParticipations(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants.Participations = participations

	return grants, nil
}

func (r *Repository) loadMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT m.id, m.status, g.id,
			r.id, r.name, r.description, r.scope,
			ar.id, ar.resource, ar.action,
			ar.group_id, ar.event_id, ar.amendment_id, ar.blog_id
		FROM memberships m
		JOIN groups g ON g.id = m.group_id
		LEFT JOIN roles r ON r.group_id = g.id
		LEFT JOIN action_rights ar ON ar.role_id = r.id
		WHERE m.user_id = $1
		ORDER BY m.id, r.created_at, ar.id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	groups := make(map[string]*Group)
	roleIdx := make(map[string]map[string]int)

	for rows.Next() {
		var (
			membershipID, status, groupID                string
			roleID, roleName, roleDescription, roleScope pgtype.Text
			right                                        rightRow
		)
		if err := rows.Scan(
			&membershipID, &status, &groupID,
			&roleID, &roleName, &roleDescription, &roleScope,
			&right.id, &right.resource, &right.action,
			&right.groupID, &right.eventID, &right.amendmentID, &right.blogID,
		); err != nil {
			return nil, err
		}

		group, ok := groups[membershipID]
		if !ok {
			group = &Group{ID: groupID}
			memberships = append(memberships, Membership{
				ID:     membershipID,
				Status: MembershipStatus(status),
				Group:  group,
			})
			groups[membershipID] = group
			roleIdx[membershipID] = make(map[string]int)
		}
		if !roleID.Valid {
			continue
		}
		idx, ok := roleIdx[membershipID][roleID.String]
		if !ok {
			group.Roles = append(group.Roles, Role{
				ID:          roleID.String,
				Name:        roleName.String,
				Description: roleDescription.String,
				Scope:       Scope(roleScope.String),
			})
			idx = len(group.Roles) - 1
			roleIdx[membershipID][roleID.String] = idx
		}
		if ar, ok := right.actionRight(); ok {
			group.Roles[idx].ActionRights = append(group.Roles[idx].ActionRights, ar)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *Repository) loadParticipations(ctx context.Context, userID string) ([]Participation, error) {
	query := `
		SELECT p.id, e.id,
			r.id, r.name, r.description, r.scope,
			ar.id, ar.resource, ar.action,
			ar.group_id, ar.event_id, ar.amendment_id, ar.blog_id
		FROM participations p
		JOIN events e ON e.id = p.event_id
		LEFT JOIN roles r ON r.id = p.role_id
		LEFT JOIN action_rights ar ON ar.role_id = r.id
		WHERE p.user_id = $1
		ORDER BY p.id, ar.id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participations []Participation
	idx := make(map[string]int)

	for rows.Next() {
		var (
			participationID, eventID                     string
			roleID, roleName, roleDescription, roleScope pgtype.Text
			right                                        rightRow
		)
		if err := rows.Scan(
			&participationID, &eventID,
			&roleID, &roleName, &roleDescription, &roleScope,
			&right.id, &right.resource, &right.action,
			&right.groupID, &right.eventID, &right.amendmentID, &right.blogID,
		); err != nil {
			return nil, err
		}

		i, ok := idx[participationID]
		if !ok {
			p := Participation{ID: participationID, Event: &Event{ID: eventID}}
			if roleID.Valid {
				p.Role = &Role{
					ID:          roleID.String,
					Name:        roleName.String,
					Description: roleDescription.String,
					Scope:       Scope(roleScope.String),
				}
			}
			participations = append(participations, p)
			i = len(participations) - 1
			idx[participationID] = i
		}
		if participations[i].Role != nil {
			if ar, ok := right.actionRight(); ok {
				participations[i].Role.ActionRights = append(participations[i].Role.ActionRights, ar)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participations, nil
}

// AmendmentGrants fetches the amendment's collaborator list and its roles
// with action rights. Role order follows creation order so the by-name
// resolution scans roles the same way every time.
func (r *Repository) AmendmentGrants(ctx context.Context, amendmentID string) (*Amendment, error) {
	amendment := &Amendment{ID: amendmentID}

	collabRows, err := r.pool.Query(ctx,
		`SELECT user_id, role_name FROM amendment_collaborators WHERE amendment_id = $1 ORDER BY created_at`,
		amendmentID)
	if err != nil {
		return nil, err
	}
	defer collabRows.Close()
	for collabRows.Next() {
		var userID, roleName string
		if err := collabRows.Scan(&userID, &roleName); err != nil {
			return nil, err
		}
		amendment.RoleCollaborators = append(amendment.RoleCollaborators, Collaborator{
			User: &UserRef{ID: userID},
			Role: roleName,
		})
	}
	if err := collabRows.Err(); err != nil {
		return nil, err
	}

	roles, err := r.loadScopedRoles(ctx, "amendment_id", amendmentID)
	if err != nil {
		return nil, err
	}
	amendment.Roles = roles
	return amendment, nil
}

// BlogGrants mirrors AmendmentGrants for blog-scoped roles.
func (r *Repository) BlogGrants(ctx context.Context, blogID string) (*Blog, error) {
	blog := &Blog{ID: blogID}

	collabRows, err := r.pool.Query(ctx,
		`SELECT user_id, role_name FROM blog_collaborators WHERE blog_id = $1 ORDER BY created_at`,
		blogID)
	if err != nil {
		return nil, err
	}
	defer collabRows.Close()
	for collabRows.Next() {
		var userID, roleName string
		if err := collabRows.Scan(&userID, &roleName); err != nil {
			return nil, err
		}
		blog.RoleCollaborators = append(blog.RoleCollaborators, Collaborator{
			User: &UserRef{ID: userID},
			Role: roleName,
		})
	}
	if err := collabRows.Err(); err != nil {
		return nil, err
	}

	roles, err := r.loadScopedRoles(ctx, "blog_id", blogID)
	if err != nil {
		return nil, err
	}
	blog.Roles = roles
	return blog, nil
}

func (r *Repository) loadScopedRoles(ctx context.Context, scopeColumn, scopeID string) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.scope,
			ar.id, ar.resource, ar.action,
			ar.group_id, ar.event_id, ar.amendment_id, ar.blog_id
		FROM roles r
		LEFT JOIN action_rights ar ON ar.role_id = r.id
		WHERE r.` + scopeColumn + ` = $1
		ORDER BY r.created_at, ar.id`

	rows, err := r.pool.Query(ctx, query, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	idx := make(map[string]int)
	for rows.Next() {
		var (
			roleID, roleName, roleDescription, roleScope string
			right                                        rightRow
		)
		if err := rows.Scan(
			&roleID, &roleName, &roleDescription, &roleScope,
			&right.id, &right.resource, &right.action,
			&right.groupID, &right.eventID, &right.amendmentID, &right.blogID,
		); err != nil {
			return nil, err
		}
		i, ok := idx[roleID]
		if !ok {
			roles = append(roles, Role{
				ID:          roleID,
				Name:        roleName,
				Description: roleDescription,
				Scope:       Scope(roleScope),
			})
			i = len(roles) - 1
			idx[roleID] = i
		}
		if ar, ok := right.actionRight(); ok {
			roles[i].ActionRights = append(roles[i].ActionRights, ar)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// rightRow scans the nullable action_rights columns of a joined row.
type rightRow struct {
	id          pgtype.Text
	resource    pgtype.Text
	action      pgtype.Text
	groupID     pgtype.Text
	eventID     pgtype.Text
	amendmentID pgtype.Text
	blogID      pgtype.Text
}

func (rr rightRow) actionRight() (ActionRight, bool) {
	if !rr.id.Valid {
		return ActionRight{}, false
	}
	right := ActionRight{
		ID:       rr.id.String,
		Resource: Resource(rr.resource.String),
		Action:   Action(rr.action.String),
	}
	if rr.groupID.Valid {
		right.Group = &ScopeRef{ID: rr.groupID.String}
	}
	if rr.eventID.Valid {
		right.Event = &ScopeRef{ID: rr.eventID.String}
	}
	if rr.amendmentID.Valid {
		right.Amendment = &ScopeRef{ID: rr.amendmentID.String}
	}
	if rr.blogID.Valid {
		right.Blog = &ScopeRef{ID: rr.blogID.String}
	}
	return right, true
}
