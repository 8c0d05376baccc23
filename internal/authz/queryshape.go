package authz

import "context"

// The predicates assume fully materialized graphs; they never fetch. Each
// check needs a specific nested shape, and loading anything shallower makes
// every predicate return false rather than error:
//
//	group checks      membership -> group -> roles -> actionRights
//	event checks      participation -> role -> actionRights
//	amendment checks  amendment -> roleCollaborators -> user
//	                  amendment -> roles -> actionRights
//	blog checks       blog -> roleCollaborators -> user
//	                  blog -> roles -> actionRights
//
// PrincipalGrants bundles the subject side of those shapes for one user.
type PrincipalGrants struct {
	UserID         string
	Memberships    []Membership
	Participations []Participation
}

// Subject converts the loaded grants into a resolver subject.
func (g *PrincipalGrants) Subject() Subject {
	if g == nil {
		return Subject{}
	}
	return Subject{
		UserID:         g.UserID,
		Authenticated:  g.UserID != "",
		Memberships:    g.Memberships,
		Participations: g.Participations,
	}
}

// GrantLoader fetches the nested graphs the predicates require. Callers own
// any caching; evaluation itself always re-walks current relationship data.
type GrantLoader interface {
	PrincipalGrants(ctx context.Context, userID string) (*PrincipalGrants, error)
	AmendmentGrants(ctx context.Context, amendmentID string) (*Amendment, error)
	BlogGrants(ctx context.Context, blogID string) (*Blog, error)
}
