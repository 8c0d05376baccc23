package amendments

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civitas-platform/civitas/internal/shared"
)

type memRepo struct {
	amendments    map[string]Amendment
	versions      map[string][]Version
	collaborators map[string]Collaborator
	seq           int
}

func newMemRepo() *memRepo {
	return &memRepo{
		amendments:    map[string]Amendment{},
		versions:      map[string][]Version{},
		collaborators: map[string]Collaborator{},
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) CreateAmendment(ctx context.Context, input CreateAmendmentInput) (*Amendment, error) {
	a := Amendment{ID: r.nextID("a"), GroupID: input.GroupID, Title: input.Title, Body: input.Body, Visibility: input.Visibility, OwnerID: input.OwnerID}
	r.amendments[a.ID] = a
	r.versions[a.ID] = []Version{{ID: r.nextID("v"), AmendmentID: a.ID, Number: 1, Body: input.Body, AuthorID: input.OwnerID, Note: "initial version"}}
	return &a, nil
}

func (r *memRepo) GetAmendment(ctx context.Context, id string) (*Amendment, error) {
	a, ok := r.amendments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAmendments(ctx context.Context, groupID string, limit, offset int) ([]Amendment, int, error) {
	var out []Amendment
	for _, a := range r.amendments {
		if groupID == "" || a.GroupID == groupID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateAmendment(ctx context.Context, id string, input UpdateAmendmentInput) (*Amendment, error) {
	a, ok := r.amendments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.Title = input.Title
	a.Visibility = input.Visibility
	r.amendments[id] = a
	return &a, nil
}

func (r *memRepo) DeleteAmendment(ctx context.Context, id string) error {
	if _, ok := r.amendments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.amendments, id)
	delete(r.versions, id)
	return nil
}

func (r *memRepo) AddVersion(ctx context.Context, amendmentID, body, authorID, note string) (*Version, error) {
	a, ok := r.amendments[amendmentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	v := Version{ID: r.nextID("v"), AmendmentID: amendmentID, Number: len(r.versions[amendmentID]) + 1, Body: body, AuthorID: authorID, Note: note}
	r.versions[amendmentID] = append(r.versions[amendmentID], v)
	a.Body = body
	r.amendments[amendmentID] = a
	return &v, nil
}

func (r *memRepo) ListVersions(ctx context.Context, amendmentID string) ([]Version, error) {
	return r.versions[amendmentID], nil
}

func (r *memRepo) GetVersion(ctx context.Context, amendmentID string, number int) (*Version, error) {
	for _, v := range r.versions[amendmentID] {
		if v.Number == number {
			return &v, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepo) AddCollaborator(ctx context.Context, amendmentID, userID, roleName string) (*Collaborator, error) {
	for _, c := range r.collaborators {
		if c.AmendmentID == amendmentID && c.UserID == userID {
			return nil, ErrCollaboratorExists
		}
	}
	c := Collaborator{ID: r.nextID("c"), AmendmentID: amendmentID, UserID: userID, RoleName: roleName}
	r.collaborators[c.ID] = c
	return &c, nil
}

func (r *memRepo) ListCollaborators(ctx context.Context, amendmentID string) ([]Collaborator, error) {
	var out []Collaborator
	for _, c := range r.collaborators {
		if c.AmendmentID == amendmentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) RemoveCollaborator(ctx context.Context, id string) error {
	if _, ok := r.collaborators[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.collaborators, id)
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil, nil), repo
}

func TestCreateAmendmentSeedsFirstVersion(t *testing.T) {
	svc, repo := newTestService()

	a, err := svc.CreateAmendment(context.Background(), CreateAmendmentInput{
		GroupID: "G1",
		Title:   "Budget reform",
		Body:    "Section 1 ...",
		OwnerID: "U1",
	})
	require.NoError(t, err)

	versions, err := repo.ListVersions(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, 1, versions[0].Number)
	require.Equal(t, "Section 1 ...", versions[0].Body)
}

func TestCreateAmendmentValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateAmendment(context.Background(), CreateAmendmentInput{GroupID: "G1", Title: " ", Body: "x", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrTitleRequired)

	_, err = svc.CreateAmendment(context.Background(), CreateAmendmentInput{GroupID: "G1", Title: "T", Body: "  ", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrBodyRequired)

	_, err = svc.CreateAmendment(context.Background(), CreateAmendmentInput{GroupID: "G1", Title: "T", Body: "x", Visibility: "internal", OwnerID: "U1"})
	require.ErrorIs(t, err, ErrBadVisibility)
}

func TestAddVersionAdvancesBodyAndNumber(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.CreateAmendment(context.Background(), CreateAmendmentInput{GroupID: "G1", Title: "T", Body: "v1", OwnerID: "U1"})
	require.NoError(t, err)

	v2, err := svc.AddVersion(context.Background(), "U2", a.ID, "v2 text", "rewording")
	require.NoError(t, err)
	require.Equal(t, 2, v2.Number)
	require.Equal(t, "U2", v2.AuthorID)

	current, err := svc.GetAmendment(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "v2 text", current.Body)

	_, err = svc.AddVersion(context.Background(), "U2", a.ID, "  ", "")
	require.ErrorIs(t, err, ErrBodyRequired)
}

func TestCollaboratorAssignment(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.CreateAmendment(context.Background(), CreateAmendmentInput{GroupID: "G1", Title: "T", Body: "v1", OwnerID: "U1"})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(context.Background(), "U1", a.ID, "U2", "  ")
	require.ErrorIs(t, err, ErrRoleNameRequired)

	c, err := svc.AddCollaborator(context.Background(), "U1", a.ID, "U2", "Reviewer")
	require.NoError(t, err)
	require.Equal(t, "Reviewer", c.RoleName)

	_, err = svc.AddCollaborator(context.Background(), "U1", a.ID, "U2", "Editor")
	require.ErrorIs(t, err, ErrCollaboratorExists)

	require.NoError(t, svc.RemoveCollaborator(context.Background(), "U1", a.ID, c.ID))
	list, err := svc.ListCollaborators(context.Background(), a.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}
