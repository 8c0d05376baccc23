package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func memberSubject(userID, groupID string, rights ...ActionRight) Subject {
	return Subject{
		UserID:        userID,
		Authenticated: true,
		Memberships:   []Membership{groupMembership(groupID, rights...)},
	}
}

func TestCanViewVisibility(t *testing.T) {
	r := NewResolver(Policy{})
	anon := Subject{}
	authed := Subject{UserID: "U1", Authenticated: true}

	require.True(t, r.CanView(anon, Object{Resource: ResourceGroups, Visibility: VisibilityPublic}))
	require.True(t, r.CanView(anon, Object{Resource: ResourceGroups, Visibility: ""}))
	require.False(t, r.CanView(anon, Object{Resource: ResourceGroups, Visibility: VisibilityAuthenticated}))
	require.True(t, r.CanView(authed, Object{Resource: ResourceGroups, Visibility: VisibilityAuthenticated}))
	require.False(t, r.CanView(authed, Object{Resource: ResourceGroups, Visibility: "internal"}))
}

func TestCanViewPrivateFallsThrough(t *testing.T) {
	r := NewResolver(Policy{})
	obj := Object{Resource: ResourceGroups, ID: "G1", Visibility: VisibilityPrivate, GroupID: "G1"}

	require.False(t, r.CanView(Subject{UserID: "U2", Authenticated: true}, obj))

	owner := Subject{UserID: "U1", Authenticated: true}
	ownedObj := obj
	ownedObj.OwnerID = "U1"
	require.True(t, r.CanView(owner, ownedObj))

	member := memberSubject("U3", "G1")
	require.True(t, r.CanView(member, obj))

	participant := Subject{
		UserID:         "U4",
		Authenticated:  true,
		Participations: []Participation{{ID: "p1", Event: &Event{ID: "E1"}}},
	}
	eventObj := Object{Resource: ResourceEvents, ID: "E1", Visibility: VisibilityPrivate, EventID: "E1"}
	require.True(t, r.CanView(participant, eventObj))

	// A private amendment is reachable through a read grant on its
	// named-role collaboration, without any group or event relationship.
	a := &Amendment{
		ID: "A1",
		RoleCollaborators: []Collaborator{
			{User: &UserRef{ID: "U5"}, Role: "Reviewer"},
		},
		Roles: []Role{
			{ID: "r1", Name: "Reviewer", Scope: ScopeAmendment, ActionRights: []ActionRight{
				{ID: "ar1", Resource: ResourceAmendments, Action: ActionRead, Amendment: &ScopeRef{ID: "A1"}},
			}},
		},
	}
	amendObj := Object{Resource: ResourceAmendments, ID: "A1", Visibility: VisibilityPrivate, Amendment: a}
	require.True(t, r.CanView(Subject{UserID: "U5", Authenticated: true}, amendObj))
	require.False(t, r.CanView(Subject{UserID: "U6", Authenticated: true}, amendObj))
}

func TestCanOwnership(t *testing.T) {
	r := NewResolver(Policy{})
	owner := Subject{UserID: "U1", Authenticated: true}
	obj := Object{Resource: ResourceTodos, ID: "T1", OwnerID: "U1"}

	require.True(t, r.Can(owner, obj, ActionDelete))
	require.False(t, r.Can(Subject{UserID: "U2", Authenticated: true}, obj, ActionDelete))
	require.False(t, r.Can(Subject{}, Object{Resource: ResourceTodos, ID: "T1"}, ActionDelete))
}

func TestCanRoleGrant(t *testing.T) {
	r := NewResolver(Policy{})
	sub := memberSubject("U1", "G1", groupRight("G1", ResourceTodos, ActionUpdate))
	obj := Object{Resource: ResourceTodos, ID: "T1", OwnerID: "U2", GroupID: "G1"}

	require.True(t, r.Can(sub, obj, ActionUpdate))
	require.False(t, r.Can(sub, obj, ActionDelete))
}

func TestCanReadDelegatesToCanView(t *testing.T) {
	r := NewResolver(Policy{})
	anon := Subject{}
	obj := Object{Resource: ResourceBlogs, ID: "B1", Visibility: VisibilityPublic}
	require.True(t, r.Can(anon, obj, ActionRead))
	require.False(t, r.Can(anon, obj, ActionUpdate))
}

func TestDefaultPolicyForUnknownResource(t *testing.T) {
	obj := Object{Resource: Resource("legacyWidgets"), ID: "W1"}
	sub := Subject{}

	open := NewResolver(Policy{DefaultAllow: true})
	require.True(t, open.Can(sub, obj, ActionDelete))
	require.True(t, open.CanView(sub, obj))

	closed := NewResolver(Policy{})
	require.False(t, closed.Can(sub, obj, ActionDelete))
	require.False(t, closed.CanView(sub, obj))
}

func TestCanWithBlogGraph(t *testing.T) {
	r := NewResolver(Policy{})
	blog := &Blog{
		ID: "B1",
		RoleCollaborators: []Collaborator{
			{User: &UserRef{ID: "U1"}, Role: "Author"},
		},
		Roles: []Role{
			{ID: "r1", Name: "Author", Scope: ScopeBlog, ActionRights: []ActionRight{
				{ID: "ar1", Resource: ResourceBlogPosts, Action: ActionCreate, Blog: &ScopeRef{ID: "B1"}},
			}},
		},
	}
	obj := Object{Resource: ResourceBlogPosts, ID: "BP1", Blog: blog}

	require.True(t, r.Can(Subject{UserID: "U1", Authenticated: true}, obj, ActionCreate))
	require.False(t, r.Can(Subject{UserID: "U2", Authenticated: true}, obj, ActionCreate))
}

func TestCanManageGroupRelationship(t *testing.T) {
	r := NewResolver(Policy{})
	parentAdmin := memberSubject("U1", "G-parent", groupRight("G-parent", ResourceGroupRelationships, ActionManageRelationships))
	childAdmin := memberSubject("U2", "G-child", groupRight("G-child", ResourceGroupRelationships, ActionManageRelationships))

	require.True(t, r.CanManageGroupRelationship(parentAdmin, "G-parent"))
	require.False(t, r.CanManageGroupRelationship(childAdmin, "G-parent"))
}

func TestCanManageEventParticipants(t *testing.T) {
	r := NewResolver(Policy{})
	roster := []RosterEntry{
		{UserID: "U9", Status: ParticipantAdmin},
		{UserID: "U1", Status: ParticipantRegular},
	}

	participant := Subject{
		UserID:         "U1",
		Authenticated:  true,
		Participations: []Participation{{ID: "p1", Event: &Event{ID: "E1"}}},
	}
	require.True(t, r.CanManageEventParticipants(participant, "E1", "G1", roster))
	require.False(t, r.CanManageEventParticipants(participant, "E1", "G1", []RosterEntry{
		{UserID: "U1", Status: ParticipantRegular},
	}))

	eventGranted := Subject{
		UserID:        "U2",
		Authenticated: true,
		Participations: []Participation{{
			ID:    "p2",
			Event: &Event{ID: "E1"},
			Role: &Role{ID: "r1", Name: "Organizer", Scope: ScopeEvent, ActionRights: []ActionRight{
				eventRight("E1", ResourceParticipations, ActionManageParticipants),
			}},
		}},
	}
	require.True(t, r.CanManageEventParticipants(eventGranted, "E1", "G1", nil))

	groupGranted := memberSubject("U3", "G1", groupRight("G1", ResourceParticipations, ActionManageParticipants))
	require.True(t, r.CanManageEventParticipants(groupGranted, "E1", "G1", nil))

	require.False(t, r.CanManageEventParticipants(Subject{UserID: "U4", Authenticated: true}, "E1", "G1", roster))
}

func TestCanCastElectionVote(t *testing.T) {
	r := NewResolver(Policy{})
	member := memberSubject("U1", "G1")
	granted := memberSubject("U2", "G1", groupRight("G1", ResourceElections, ActionVote))
	outsider := Subject{UserID: "U3", Authenticated: true}

	require.True(t, r.CanCastElectionVote(member, "G1", ElectionOpen))
	require.False(t, r.CanCastElectionVote(member, "G1", ElectionFinished))
	require.False(t, r.CanCastElectionVote(member, "G1", ""))
	require.True(t, r.CanCastElectionVote(granted, "G1", ElectionOpen))
	require.False(t, r.CanCastElectionVote(outsider, "G1", ElectionOpen))
}

func TestResolverNilSafe(t *testing.T) {
	r := NewResolver(Policy{})
	require.NotPanics(t, func() {
		r.Can(Subject{}, Object{}, ActionDelete)
		r.CanView(Subject{}, Object{})
		r.CanManageEventParticipants(Subject{}, "", "", nil)
		r.CanManageGroupRelationship(Subject{}, "")
		r.CanCastElectionVote(Subject{}, "", ElectionOpen)
	})
}

func TestPrincipalGrantsSubject(t *testing.T) {
	var missing *PrincipalGrants
	require.Equal(t, Subject{}, missing.Subject())

	grants := &PrincipalGrants{
		UserID:      "U1",
		Memberships: []Membership{groupMembership("G1")},
	}
	sub := grants.Subject()
	require.True(t, sub.Authenticated)
	require.Equal(t, "U1", sub.UserID)
	require.Len(t, sub.Memberships, 1)
}
