package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func groupMembership(groupID string, rights ...ActionRight) Membership {
	return Membership{
		ID:     "m-" + groupID,
		Status: MembershipActive,
		Group: &Group{
			ID: groupID,
			Roles: []Role{
				{ID: "r-" + groupID, Name: "Member", Scope: ScopeGroup, ActionRights: rights},
			},
		},
	}
}

func groupRight(groupID string, resource Resource, action Action) ActionRight {
	return ActionRight{
		ID:       "ar-" + groupID + "-" + string(resource) + "-" + string(action),
		Resource: resource,
		Action:   action,
		Group:    &ScopeRef{ID: groupID},
	}
}

func eventRight(eventID string, resource Resource, action Action) ActionRight {
	return ActionRight{
		ID:       "ar-" + eventID + "-" + string(resource) + "-" + string(action),
		Resource: resource,
		Action:   action,
		Event:    &ScopeRef{ID: eventID},
	}
}

func TestHasGroupPermission(t *testing.T) {
	m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionCreate))

	require.True(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{m}, "G2", ResourceEvents, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{m}, "G1", ResourceAmendments, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionDelete))
}

func TestHasGroupPermissionNilSafe(t *testing.T) {
	require.False(t, HasGroupPermission(nil, "G1", ResourceEvents, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{}, "G1", ResourceEvents, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{{ID: "m1"}}, "G1", ResourceEvents, ActionCreate))
	require.False(t, HasGroupPermission([]Membership{{ID: "m1", Group: &Group{ID: "G1"}}}, "G1", ResourceEvents, ActionCreate))
}

func TestHasGroupPermissionChecksRightScopeID(t *testing.T) {
	// A right loaded from another group must not leak into this group's
	// decision even when attached to one of its roles.
	m := Membership{
		ID:     "m1",
		Status: MembershipActive,
		Group: &Group{
			ID: "G1",
			Roles: []Role{
				{ID: "r1", Name: "Member", Scope: ScopeGroup, ActionRights: []ActionRight{
					groupRight("G2", ResourceEvents, ActionCreate),
				}},
			},
		},
	}
	require.False(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate))
}

func TestManageIsNotManageParticipants(t *testing.T) {
	m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionManage))
	require.False(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionManageParticipants))
	require.True(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionManage))
}

func TestPendingMembershipGrantsNothing(t *testing.T) {
	for _, status := range []MembershipStatus{MembershipInvited, MembershipRequested} {
		m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionCreate))
		m.Status = status
		require.False(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate), string(status))
		require.False(t, IsGroupMember([]Membership{m}, "G1"), string(status))
		require.True(t, HasGroupMembership([]Membership{m}, "G1"), string(status))
	}
}

func TestLegacyMembershipWithoutStatusGrants(t *testing.T) {
	m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionCreate))
	m.Status = ""
	require.True(t, HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate))
}

func TestHasEventPermission(t *testing.T) {
	p := Participation{
		ID:    "p1",
		Event: &Event{ID: "E1"},
		Role: &Role{ID: "r1", Name: "Organizer", Scope: ScopeEvent, ActionRights: []ActionRight{
			eventRight("E1", ResourceAgendaItems, ActionManage),
		}},
	}

	require.True(t, HasEventPermission([]Participation{p}, "E1", ResourceAgendaItems, ActionManage))
	require.False(t, HasEventPermission([]Participation{p}, "E1", ResourceAgendaItems, ActionCreate))
	require.False(t, HasEventPermission([]Participation{p}, "E2", ResourceAgendaItems, ActionManage))
	require.False(t, HasEventPermission(nil, "E1", ResourceAgendaItems, ActionManage))
	require.False(t, HasEventPermission([]Participation{{ID: "p2", Event: &Event{ID: "E1"}}}, "E1", ResourceAgendaItems, ActionManage))
}

func amendmentFixture() *Amendment {
	return &Amendment{
		ID: "A1",
		RoleCollaborators: []Collaborator{
			{User: &UserRef{ID: "U1"}, Role: "Editor"},
		},
		Roles: []Role{
			{ID: "role-editor", Name: "Editor", Scope: ScopeAmendment, ActionRights: []ActionRight{
				{ID: "ar1", Resource: ResourceAmendments, Action: ActionUpdate, Amendment: &ScopeRef{ID: "A1"}},
			}},
		},
	}
}

func TestHasAmendmentPermission(t *testing.T) {
	a := amendmentFixture()

	require.True(t, HasAmendmentPermission(a, "U1", ResourceAmendments, ActionUpdate))
	require.False(t, HasAmendmentPermission(a, "U2", ResourceAmendments, ActionUpdate))
	require.False(t, HasAmendmentPermission(a, "U1", ResourceAmendments, ActionDelete))
	require.False(t, HasAmendmentPermission(nil, "U1", ResourceAmendments, ActionUpdate))
}

func TestAmendmentRoleResolvedByName(t *testing.T) {
	a := amendmentFixture()
	// A role with identical rights but a different name never grants.
	a.Roles = []Role{
		{ID: "role-reviewer", Name: "Reviewer", Scope: ScopeAmendment, ActionRights: []ActionRight{
			{ID: "ar1", Resource: ResourceAmendments, Action: ActionUpdate, Amendment: &ScopeRef{ID: "A1"}},
		}},
	}
	require.False(t, HasAmendmentPermission(a, "U1", ResourceAmendments, ActionUpdate))

	// When two role records share the collaborator's role name, the first
	// match wins even if a later one carries the needed right.
	a.Roles = []Role{
		{ID: "role-editor-1", Name: "Editor", Scope: ScopeAmendment},
		{ID: "role-editor-2", Name: "Editor", Scope: ScopeAmendment, ActionRights: []ActionRight{
			{ID: "ar1", Resource: ResourceAmendments, Action: ActionUpdate, Amendment: &ScopeRef{ID: "A1"}},
		}},
	}
	require.False(t, HasAmendmentPermission(a, "U1", ResourceAmendments, ActionUpdate))

	a.Roles[0].ActionRights = a.Roles[1].ActionRights
	require.True(t, HasAmendmentPermission(a, "U1", ResourceAmendments, ActionUpdate))
}

func TestHasBlogPermission(t *testing.T) {
	b := &Blog{
		ID: "B1",
		RoleCollaborators: []Collaborator{
			{User: &UserRef{ID: "U1"}, Role: "Author"},
		},
		Roles: []Role{
			{ID: "role-author", Name: "Author", Scope: ScopeBlog, ActionRights: []ActionRight{
				{ID: "ar1", Resource: ResourceBlogPosts, Action: ActionCreate, Blog: &ScopeRef{ID: "B1"}},
			}},
		},
	}
	require.True(t, HasBlogPermission(b, "U1", ResourceBlogPosts, ActionCreate))
	require.False(t, HasBlogPermission(b, "U2", ResourceBlogPosts, ActionCreate))
	require.False(t, HasBlogPermission(nil, "U1", ResourceBlogPosts, ActionCreate))
}

func TestHasPermissionComposite(t *testing.T) {
	// Fails the group check, passes the event check for the same pair.
	m := groupMembership("G1", groupRight("G1", ResourceTodos, ActionUpdate))
	p := Participation{
		ID:    "p1",
		Event: &Event{ID: "E1"},
		Role: &Role{ID: "r1", Name: "Organizer", Scope: ScopeEvent, ActionRights: []ActionRight{
			eventRight("E1", ResourceAgendaItems, ActionManage),
		}},
	}

	require.True(t, HasPermission([]Membership{m}, []Participation{p}, nil, "U1", "G1", "E1", ResourceAgendaItems, ActionManage))
	require.False(t, HasPermission([]Membership{m}, []Participation{p}, nil, "U1", "G1", "", ResourceAgendaItems, ActionManage))
	require.True(t, HasPermission([]Membership{m}, nil, amendmentFixture(), "U1", "", "", ResourceAmendments, ActionUpdate))
	require.False(t, HasPermission(nil, nil, nil, "U1", "", "", ResourceAgendaItems, ActionManage))
}

func TestPredicatesAreIdempotent(t *testing.T) {
	m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionCreate))
	first := HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate)
	second := HasGroupPermission([]Membership{m}, "G1", ResourceEvents, ActionCreate)
	require.Equal(t, first, second)
	require.True(t, first)
}

func TestGroupPermissionsEnumerates(t *testing.T) {
	m := groupMembership("G1",
		groupRight("G1", ResourceEvents, ActionCreate),
		groupRight("G1", ResourceTodos, ActionUpdate),
		groupRight("G2", ResourceEvents, ActionDelete),
	)
	rights := GroupPermissions([]Membership{m}, "G1")
	require.Len(t, rights, 2)
	for _, right := range rights {
		require.Equal(t, "G1", right.GroupID())
	}
	require.Empty(t, GroupPermissions(nil, "G1"))
}

func TestEventPermissionsEnumerates(t *testing.T) {
	p := Participation{
		ID:    "p1",
		Event: &Event{ID: "E1"},
		Role: &Role{ID: "r1", Name: "Organizer", Scope: ScopeEvent, ActionRights: []ActionRight{
			eventRight("E1", ResourceAgendaItems, ActionManage),
			eventRight("E2", ResourceAgendaItems, ActionManage),
		}},
	}
	rights := EventPermissions([]Participation{p}, "E1")
	require.Len(t, rights, 1)
	require.Equal(t, "E1", rights[0].EventID())
}

func TestAmendmentPermissionsEnumerates(t *testing.T) {
	a := amendmentFixture()
	rights := AmendmentPermissions(a, "U1")
	require.Len(t, rights, 1)
	require.Empty(t, AmendmentPermissions(a, "U2"))
	require.Empty(t, AmendmentPermissions(nil, "U1"))
}

func TestMembershipHelpers(t *testing.T) {
	m := groupMembership("G1", groupRight("G1", ResourceEvents, ActionCreate))
	require.True(t, IsGroupMember([]Membership{m}, "G1"))
	require.False(t, IsGroupMember([]Membership{m}, "G2"))
	require.True(t, HasGroupRole([]Membership{m}, "G1", "Member"))
	require.False(t, HasGroupRole([]Membership{m}, "G1", "Organizer"))
}

func TestParticipationHelpers(t *testing.T) {
	p := Participation{ID: "p1", Event: &Event{ID: "E1"}, Role: &Role{ID: "r1", Name: "Speaker"}}
	require.True(t, IsEventParticipant([]Participation{p}, "E1"))
	require.False(t, IsEventParticipant([]Participation{p}, "E2"))
	require.True(t, HasEventRole([]Participation{p}, "E1", "Speaker"))
	require.False(t, HasEventRole([]Participation{p}, "E1", "Organizer"))
	require.False(t, HasEventRole([]Participation{{ID: "p2", Event: &Event{ID: "E1"}}}, "E1", "Speaker"))
}

func TestActionRightWellformed(t *testing.T) {
	require.True(t, groupRight("G1", ResourceEvents, ActionCreate).Wellformed())
	require.False(t, ActionRight{ID: "ar1", Resource: ResourceEvents, Action: ActionCreate}.Wellformed())
	require.False(t, ActionRight{
		ID:       "ar2",
		Resource: ResourceEvents,
		Action:   ActionCreate,
		Group:    &ScopeRef{ID: "G1"},
		Event:    &ScopeRef{ID: "E1"},
	}.Wellformed())
}
