package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceCatalog(t *testing.T) {
	require.True(t, ResourceGroups.IsValid())
	require.True(t, ResourceElectionVotes.IsValid())
	require.False(t, Resource("widgets").IsValid())
	require.False(t, Resource("").IsValid())
	require.Equal(t, "groupRelationships", ResourceGroupRelationships.String())
}

func TestActionCatalog(t *testing.T) {
	require.True(t, ActionManage.IsValid())
	require.True(t, ActionManageParticipants.IsValid())
	require.False(t, Action("administer").IsValid())
	require.NotEqual(t, ActionManage, ActionManageParticipants)
}

func TestScopeCatalog(t *testing.T) {
	require.Len(t, Scopes(), 4)
	require.True(t, ScopeGroup.IsValid())
	require.True(t, ScopeBlog.IsValid())
	require.False(t, Scope("organization").IsValid())
}

func TestActionRightScopeAccessors(t *testing.T) {
	right := ActionRight{
		ID:       "ar1",
		Resource: ResourceEvents,
		Action:   ActionCreate,
		Event:    &ScopeRef{ID: "E1"},
	}
	require.Equal(t, "E1", right.EventID())
	require.Empty(t, right.GroupID())
	require.Empty(t, right.AmendmentID())
	require.Empty(t, right.BlogID())
}
