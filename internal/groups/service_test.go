package groups

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	groups        map[string]Group
	memberships   map[string]Membership
	relationships map[string]Relationship
	seq           int
}

func newMemRepo() *memRepo {
	return &memRepo{
		groups:        map[string]Group{},
		memberships:   map[string]Membership{},
		relationships: map[string]Relationship{},
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateGroup(ctx context.Context, input CreateGroupInput) (*Group, error) {
	g := Group{ID: r.nextID("g"), Name: input.Name, Description: input.Description, Visibility: input.Visibility, OwnerID: input.OwnerID}
	r.groups[g.ID] = g
	return &g, nil
}

func (r *memRepo) GetGroup(ctx context.Context, id string) (*Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &g, nil
}

func (r *memRepo) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateGroup(ctx context.Context, id string, input UpdateGroupInput) (*Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	g.Name = input.Name
	g.Description = input.Description
	g.Visibility = input.Visibility
	r.groups[id] = g
	return &g, nil
}

func (r *memRepo) DeleteGroup(ctx context.Context, id string) error {
	if _, ok := r.groups[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.groups, id)
	return nil
}

func (r *memRepo) CreateMembership(ctx context.Context, groupID, userID string, status authz.MembershipStatus) (*Membership, error) {
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			return nil, ErrMembershipExists
		}
	}
	m := Membership{ID: r.nextID("m"), GroupID: groupID, UserID: userID, Status: status}
	r.memberships[m.ID] = m
	return &m, nil
}

func (r *memRepo) GetMembership(ctx context.Context, id string) (*Membership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r *memRepo) ListMemberships(ctx context.Context, groupID string) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateMembershipStatus(ctx context.Context, id string, status authz.MembershipStatus) (*Membership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	m.Status = status
	r.memberships[id] = m
	return &m, nil
}

func (r *memRepo) DeleteMembership(ctx context.Context, id string) error {
	if _, ok := r.memberships[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.memberships, id)
	return nil
}

func (r *memRepo) CreateRelationship(ctx context.Context, parentID, childID, requestedBy string) (*Relationship, error) {
	for _, rel := range r.relationships {
		if rel.ParentGroupID == parentID && rel.ChildGroupID == childID {
			return nil, ErrRelationshipExists
		}
	}
	rel := Relationship{ID: r.nextID("rel"), ParentGroupID: parentID, ChildGroupID: childID, Status: RelationshipPending, RequestedBy: requestedBy}
	r.relationships[rel.ID] = rel
	return &rel, nil
}

func (r *memRepo) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	rel, ok := r.relationships[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &rel, nil
}

func (r *memRepo) ListRelationships(ctx context.Context, groupID string) ([]Relationship, error) {
	var out []Relationship
	for _, rel := range r.relationships {
		if rel.ParentGroupID == groupID || rel.ChildGroupID == groupID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateRelationshipStatus(ctx context.Context, id string, status RelationshipStatus) (*Relationship, error) {
	rel, ok := r.relationships[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	rel.Status = status
	r.relationships[id] = rel
	return &rel, nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil, nil, nil), repo
}

func TestCreateGroupMakesOwnerActiveMember(t *testing.T) {
	svc, repo := newTestService()

	group, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Cycling Club", Visibility: authz.VisibilityPublic, OwnerID: "U1"})
	require.NoError(t, err)
	require.Equal(t, "U1", group.OwnerID)

	members, err := repo.ListMemberships(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "U1", members[0].UserID)
	require.Equal(t, authz.MembershipActive, members[0].Status)
}

func TestCreateGroupValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "   ", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Club", Visibility: "internal", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrBadVisibility)
}

func TestAcceptInviteRequiresInvitedUser(t *testing.T) {
	svc, _ := newTestService()
	group, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Club", OwnerID: "U1"})
	require.NoError(t, err)

	m, err := svc.Invite(context.Background(), "U1", group.ID, "U2")
	require.NoError(t, err)
	require.Equal(t, authz.MembershipInvited, m.Status)

	_, err = svc.AcceptInvite(context.Background(), "U3", m.ID)
	require.ErrorIs(t, err, ErrNotYourInvite)

	accepted, err := svc.AcceptInvite(context.Background(), "U2", m.ID)
	require.NoError(t, err)
	require.Equal(t, authz.MembershipActive, accepted.Status)

	_, err = svc.AcceptInvite(context.Background(), "U2", m.ID)
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestApproveRequestOnlyFromRequested(t *testing.T) {
	svc, _ := newTestService()
	group, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Club", OwnerID: "U1"})
	require.NoError(t, err)

	m, err := svc.RequestJoin(context.Background(), group.ID, "U2")
	require.NoError(t, err)
	require.Equal(t, authz.MembershipRequested, m.Status)

	approved, err := svc.ApproveRequest(context.Background(), "U1", m.ID)
	require.NoError(t, err)
	require.Equal(t, authz.MembershipActive, approved.Status)

	invited, err := svc.Invite(context.Background(), "U1", group.ID, "U3")
	require.NoError(t, err)
	_, err = svc.ApproveRequest(context.Background(), "U1", invited.ID)
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestDuplicateMembershipRejected(t *testing.T) {
	svc, _ := newTestService()
	group, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Club", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.Invite(context.Background(), "U1", group.ID, "U2")
	require.NoError(t, err)
	_, err = svc.RequestJoin(context.Background(), group.ID, "U2")
	require.ErrorIs(t, err, ErrMembershipExists)
}

func TestRequestRelationshipRejectsSelf(t *testing.T) {
	svc, _ := newTestService()
	group, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Parent", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.RequestRelationship(context.Background(), "U1", group.ID, group.ID)
	require.ErrorIs(t, err, ErrSelfRelationship)
}

func TestRequestRelationshipRequiresBothGroups(t *testing.T) {
	svc, _ := newTestService()
	parent, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Parent", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.RequestRelationship(context.Background(), "U1", parent.ID, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveRelationshipLifecycle(t *testing.T) {
	svc, _ := newTestService()
	parent, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Parent", OwnerID: "U1"})
	require.NoError(t, err)
	child, err := svc.CreateGroup(context.Background(), CreateGroupInput{Name: "Child", OwnerID: "U2"})
	require.NoError(t, err)

	rel, err := svc.RequestRelationship(context.Background(), "U2", parent.ID, child.ID)
	require.NoError(t, err)
	require.Equal(t, RelationshipPending, rel.Status)

	resolved, err := svc.ResolveRelationship(context.Background(), "U1", rel.ID, true)
	require.NoError(t, err)
	require.Equal(t, RelationshipApproved, resolved.Status)

	_, err = svc.ResolveRelationship(context.Background(), "U1", rel.ID, false)
	require.ErrorIs(t, err, ErrRequestNotPending)
}
