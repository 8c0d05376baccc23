package authz

// Policy names the fallback applied to resources outside the catalog. The
// rule set historically ended in a catch-all allow; making the fallback an
// explicit setting keeps that security-relevant choice visible and flippable.
type Policy struct {
	DefaultAllow bool
}

// Subject is the principal under evaluation, with its grant graph already
// materialized. No global auth state: every call receives the subject.
type Subject struct {
	UserID         string
	Authenticated  bool
	Memberships    []Membership
	Participations []Participation
}

// Object is the resource instance under evaluation. GroupID/EventID locate
// the scope instances a role check may run against; Amendment/Blog carry the
// named-role collaborator graphs when the object lives in those scopes.
type Object struct {
	Resource   Resource
	ID         string
	OwnerID    string
	Visibility Visibility
	GroupID    string
	EventID    string
	Amendment  *Amendment
	Blog       *Blog
}

// ElectionState is the workflow state gating vote casting.
type ElectionState string

const (
	ElectionDraft    ElectionState = "draft"
	ElectionOpen     ElectionState = "open"
	ElectionFinished ElectionState = "finished"
)

// ParticipantStatus marks a roster entry's standing within an event.
type ParticipantStatus string

const (
	ParticipantAdmin   ParticipantStatus = "admin"
	ParticipantRegular ParticipantStatus = "participant"
)

// RosterEntry is one entry of an event's participant list, as needed by the
// roster-admin rule.
type RosterEntry struct {
	UserID string
	Status ParticipantStatus
}

// Resolver combines visibility, ownership and role-grant layers into one
// allow/deny decision. Any matching layer grants; there is no deny override.
// Decisions here predict the authoritative server-side rule evaluation and
// are advisory: a write may still be rejected at commit time.
type Resolver struct {
	policy Policy
}

// NewResolver constructs a Resolver with the given fallback policy.
func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy}
}

// CanView decides read access. Visibility is evaluated before and
// independently of any role check: public (or absent) visibility always
// allows, authenticated visibility requires a logged-in subject, and private
// visibility falls through to ownership, scope relationships and read grants.
func (r *Resolver) CanView(sub Subject, obj Object) bool {
	if !obj.Resource.IsValid() {
		return r.policy.DefaultAllow
	}
	switch obj.Visibility {
	case "", VisibilityPublic:
		return true
	case VisibilityAuthenticated:
		return sub.Authenticated
	case VisibilityPrivate:
		// fall through to relationship checks
	default:
		// Unknown visibility values deny rather than guess.
		return false
	}
	if r.isOwner(sub, obj) {
		return true
	}
	if obj.GroupID != "" && IsGroupMember(sub.Memberships, obj.GroupID) {
		return true
	}
	if obj.EventID != "" && IsEventParticipant(sub.Participations, obj.EventID) {
		return true
	}
	return r.hasGrant(sub, obj, ActionRead)
}

// Can decides whether the subject may perform action on the object. Read maps
// to CanView; mutations are granted by ownership or by a matching role grant
// in any applicable scope.
func (r *Resolver) Can(sub Subject, obj Object, action Action) bool {
	if !obj.Resource.IsValid() {
		return r.policy.DefaultAllow
	}
	if action == ActionRead {
		return r.CanView(sub, obj)
	}
	if r.isOwner(sub, obj) {
		return true
	}
	return r.hasGrant(sub, obj, action)
}

// CanManageGroupRelationship gates parent/child group link requests: the
// actor needs manage_relationships on the PARENT group, regardless of which
// side initiated the request.
func (r *Resolver) CanManageGroupRelationship(sub Subject, parentGroupID string) bool {
	return HasGroupPermission(sub.Memberships, parentGroupID, ResourceGroupRelationships, ActionManageRelationships)
}

// CanManageEventParticipants applies the roster-admin rule. Three
// independently sufficient clauses: the actor participates and the roster
// contains any admin entry; an event-scoped manage_participants grant; or a
// group-scoped manage_participants grant on the event's owning group.
func (r *Resolver) CanManageEventParticipants(sub Subject, eventID, groupID string, roster []RosterEntry) bool {
	if IsEventParticipant(sub.Participations, eventID) && rosterHasAdmin(roster) {
		return true
	}
	if HasEventPermission(sub.Participations, eventID, ResourceParticipations, ActionManageParticipants) {
		return true
	}
	return HasGroupPermission(sub.Memberships, groupID, ResourceParticipations, ActionManageParticipants)
}

// CanCastElectionVote layers the election's workflow state on top of the
// membership check: only open elections accept votes, and only from group
// members or holders of an explicit vote grant.
func (r *Resolver) CanCastElectionVote(sub Subject, groupID string, state ElectionState) bool {
	if state != ElectionOpen {
		return false
	}
	if IsGroupMember(sub.Memberships, groupID) {
		return true
	}
	return HasGroupPermission(sub.Memberships, groupID, ResourceElections, ActionVote)
}

func (r *Resolver) isOwner(sub Subject, obj Object) bool {
	return sub.UserID != "" && obj.OwnerID != "" && sub.UserID == obj.OwnerID
}

func (r *Resolver) hasGrant(sub Subject, obj Object, action Action) bool {
	if HasPermission(sub.Memberships, sub.Participations, obj.Amendment, sub.UserID, obj.GroupID, obj.EventID, obj.Resource, action) {
		return true
	}
	if obj.Blog != nil && HasBlogPermission(obj.Blog, sub.UserID, obj.Resource, action) {
		return true
	}
	return false
}

func rosterHasAdmin(roster []RosterEntry) bool {
	for _, entry := range roster {
		if entry.Status == ParticipantAdmin {
			return true
		}
	}
	return false
}
