package roles

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	roles  map[string]Role
	rights map[string][]ActionRight
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{roles: make(map[string]Role), rights: make(map[string][]ActionRight)}
}

func (m *memRepo) id() string {
	m.nextID++
	return "id-" + strconv.Itoa(m.nextID)
}

func (m *memRepo) CreateRole(ctx context.Context, role Role) (*Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name && existing.Scope == role.Scope && existing.ScopeID() == role.ScopeID() {
			return nil, ErrNameTaken
		}
	}
	role.ID = m.id()
	m.roles[role.ID] = role
	return &role, nil
}

func (m *memRepo) GetRole(ctx context.Context, id string) (*Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &role, nil
}

func (m *memRepo) ListRolesByScope(ctx context.Context, scope authz.Scope, scopeID string) ([]Role, error) {
	var list []Role
	for _, role := range m.roles {
		if role.Scope == scope && role.ScopeID() == scopeID {
			list = append(list, role)
		}
	}
	return list, nil
}

func (m *memRepo) UpdateRole(ctx context.Context, id, name, description string) (*Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	role.Name = name
	role.Description = description
	m.roles[id] = role
	return &role, nil
}

func (m *memRepo) DeleteRole(ctx context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rights, id)
	return nil
}

func (m *memRepo) AddActionRight(ctx context.Context, right ActionRight) (*ActionRight, error) {
	right.ID = m.id()
	m.rights[right.RoleID] = append(m.rights[right.RoleID], right)
	return &right, nil
}

func (m *memRepo) ListActionRights(ctx context.Context, roleID string) ([]ActionRight, error) {
	return m.rights[roleID], nil
}

func (m *memRepo) DeleteActionRight(ctx context.Context, roleID, rightID string) error {
	rights := m.rights[roleID]
	for i, right := range rights {
		if right.ID == rightID {
			m.rights[roleID] = append(rights[:i], rights[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func TestCreateRoleRequiresExactlyOneScope(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Organizer"})
	require.ErrorIs(t, err, ErrScopeRequired)

	_, err = svc.CreateRole(context.Background(), CreateRoleInput{Name: "Organizer", GroupID: "G1", EventID: "E1"})
	require.ErrorIs(t, err, ErrScopeRequired)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Organizer", GroupID: "G1"})
	require.NoError(t, err)
	require.Equal(t, authz.ScopeGroup, role.Scope)
	require.Equal(t, "G1", role.ScopeID())
}

func TestCreateRoleEnforcesUniqueNamePerScope(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Editor", AmendmentID: "A1"})
	require.NoError(t, err)

	_, err = svc.CreateRole(context.Background(), CreateRoleInput{Name: "Editor", AmendmentID: "A1"})
	require.ErrorIs(t, err, ErrNameTaken)

	// Same name in a different amendment is fine.
	_, err = svc.CreateRole(context.Background(), CreateRoleInput{Name: "Editor", AmendmentID: "A2"})
	require.NoError(t, err)
}

func TestAddActionRightBindsToRoleScope(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Moderator", EventID: "E1"})
	require.NoError(t, err)

	right, err := svc.AddActionRight(context.Background(), role.ID, CreateRightInput{
		Resource: authz.ResourceAgendaItems,
		Action:   authz.ActionManage,
	})
	require.NoError(t, err)
	require.Equal(t, "E1", right.EventID)
	require.Empty(t, right.GroupID)
}

func TestAddActionRightRejectsUnknownCatalogEntries(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	role, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Moderator", GroupID: "G1"})
	require.NoError(t, err)

	_, err = svc.AddActionRight(context.Background(), role.ID, CreateRightInput{
		Resource: authz.Resource("widgets"),
		Action:   authz.ActionManage,
	})
	require.ErrorIs(t, err, ErrBadCatalog)

	_, err = svc.AddActionRight(context.Background(), role.ID, CreateRightInput{
		Resource: authz.ResourceEvents,
		Action:   authz.Action("administer"),
	})
	require.ErrorIs(t, err, ErrBadCatalog)
}

func TestCreateRoleTrimsAndRequiresName(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "   ", GroupID: "G1"})
	require.ErrorIs(t, err, ErrNameRequired)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "  Member ", GroupID: "G1"})
	require.NoError(t, err)
	require.Equal(t, "Member", role.Name)
}
