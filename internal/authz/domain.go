package authz

// ScopeRef points at the single scope instance an ActionRight is bound to.
type ScopeRef struct {
	ID string
}

// UserRef identifies a user inside a grant graph.
type UserRef struct {
	ID string
}

// ActionRight binds one (resource, action) pair to exactly one scope instance.
// Exactly one of Group/Event/Amendment/Blog is non-nil on a well-formed right;
// the predicates re-check the referenced id rather than trusting the pointer,
// because rights may have been loaded from a combined query spanning instances.
type ActionRight struct {
	ID        string
	Resource  Resource
	Action    Action
	Group     *ScopeRef
	Event     *ScopeRef
	Amendment *ScopeRef
	Blog      *ScopeRef
}

// GroupID returns the bound group id, or empty when not group-scoped.
func (r ActionRight) GroupID() string {
	if r.Group == nil {
		return ""
	}
	return r.Group.ID
}

// EventID returns the bound event id, or empty when not event-scoped.
func (r ActionRight) EventID() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.ID
}

// AmendmentID returns the bound amendment id, or empty when not amendment-scoped.
func (r ActionRight) AmendmentID() string {
	if r.Amendment == nil {
		return ""
	}
	return r.Amendment.ID
}

// BlogID returns the bound blog id, or empty when not blog-scoped.
func (r ActionRight) BlogID() string {
	if r.Blog == nil {
		return ""
	}
	return r.Blog.ID
}

// Wellformed reports whether exactly one scope reference is populated.
func (r ActionRight) Wellformed() bool {
	n := 0
	for _, ref := range []*ScopeRef{r.Group, r.Event, r.Amendment, r.Blog} {
		if ref != nil {
			n++
		}
	}
	return n == 1
}

// Role is a named bundle of action rights bound to one scope instance.
// Roles are not reusable across instances; each group/event/amendment/blog
// owns its own role records.
type Role struct {
	ID           string
	Name         string
	Description  string
	Scope        Scope
	ActionRights []ActionRight
}

// MembershipStatus tracks the membership lifecycle.
type MembershipStatus string

const (
	MembershipInvited   MembershipStatus = "invited"
	MembershipRequested MembershipStatus = "requested"
	MembershipActive    MembershipStatus = "active"
)

// Group carries the grant-relevant slice of a group record: its id and roles.
type Group struct {
	ID    string
	Roles []Role
}

// Membership binds a user to a group. Unlike Participation, a membership
// grants through every role the group defines, not an assigned one.
type Membership struct {
	ID     string
	Status MembershipStatus
	Group  *Group
}

// grantsRoles reports whether the membership has reached a state in which the
// group's roles apply. Records created before the status field existed carry
// an empty status and are treated as active.
func (m Membership) grantsRoles() bool {
	return m.Status == "" || m.Status == MembershipActive
}

// Event carries the grant-relevant slice of an event record.
type Event struct {
	ID string
}

// Participation binds a user to one event with exactly one role.
type Participation struct {
	ID    string
	Event *Event
	Role  *Role
}

// Collaborator binds a user to an amendment or blog via a role NAME, matched
// against the owning record's roles by name rather than id.
type Collaborator struct {
	User *UserRef
	Role string
}

// Amendment carries the grant-relevant slice of an amendment record.
type Amendment struct {
	ID                string
	Roles             []Role
	RoleCollaborators []Collaborator
}

// Blog mirrors Amendment's named-role collaborator model.
type Blog struct {
	ID                string
	Roles             []Role
	RoleCollaborators []Collaborator
}

// Visibility controls who may view a record before any role check runs.
// An empty value means public: records created before the field existed
// depend on the permissive default.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityAuthenticated Visibility = "authenticated"
	VisibilityPrivate       Visibility = "private"
)
