package authz

// Resource identifies a protected entity kind.
type Resource string

// Action identifies an operation on a resource.
type Action string

// Scope identifies the kind of entity a role is bound to.
type Scope string

// Resources protected by the catalog. Values match the entity names used by
// the client and the server-side rule files; adding a resource here without
// adding it to the rule files (or vice versa) makes the two evaluators drift.
const (
	ResourceGroups               Resource = "groups"
	ResourceGroupRelationships   Resource = "groupRelationships"
	ResourceMemberships          Resource = "memberships"
	ResourceMembershipRequests   Resource = "membershipRequests"
	ResourceEvents               Resource = "events"
	ResourceParticipations       Resource = "participations"
	ResourceAgendaItems          Resource = "agendaItems"
	ResourceSpeakers             Resource = "speakers"
	ResourceElections            Resource = "elections"
	ResourceElectionVotes        Resource = "electionVotes"
	ResourceAmendments           Resource = "amendments"
	ResourceAmendmentVersions    Resource = "amendmentVersions"
	ResourceAmendmentCollaborors Resource = "amendmentCollaborators"
	ResourceBlogs                Resource = "blogs"
	ResourceBlogPosts            Resource = "blogPosts"
	ResourceTodos                Resource = "todos"
	ResourceTodoAssignments      Resource = "todoAssignments"
	ResourceMessages             Resource = "messages"
	ResourceMessageThreads       Resource = "messageThreads"
	ResourceComments             Resource = "comments"
	ResourceNotifications        Resource = "notifications"
	ResourceUsers                Resource = "users"
	ResourceRoles                Resource = "roles"
	ResourceActionRights         Resource = "actionRights"
	ResourceDocuments            Resource = "documents"
	ResourceFiles                Resource = "files"
	ResourceCalendarEntries      Resource = "calendarEntries"
	ResourceInvitations          Resource = "invitations"
	ResourcePolls                Resource = "polls"
	ResourcePollVotes            Resource = "pollVotes"
	ResourceSurveys              Resource = "surveys"
	ResourcePages                Resource = "pages"
	ResourceTags                 Resource = "tags"
	ResourceLocations            Resource = "locations"
	ResourceAuditLogs            Resource = "auditLogs"
)

// Actions in the catalog. manage is NOT a wildcard for the manage_* verbs:
// each narrow verb is a distinct grant and matching is strict equality.
const (
	ActionCreate              Action = "create"
	ActionRead                Action = "read"
	ActionUpdate              Action = "update"
	ActionDelete              Action = "delete"
	ActionManage              Action = "manage"
	ActionManageParticipants  Action = "manage_participants"
	ActionManageMembers       Action = "manage_members"
	ActionManageSpeakers      Action = "manage_speakers"
	ActionManageVotes         Action = "manage_votes"
	ActionManageRelationships Action = "manage_relationships"
	ActionVote                Action = "vote"
	ActionComment             Action = "comment"
	ActionEdit                Action = "edit"
)

// Role scopes.
const (
	ScopeGroup     Scope = "group"
	ScopeEvent     Scope = "event"
	ScopeAmendment Scope = "amendment"
	ScopeBlog      Scope = "blog"
)

var resourceCatalog = map[Resource]struct{}{
	ResourceGroups:               {},
	ResourceGroupRelationships:   {},
	ResourceMemberships:          {},
	ResourceMembershipRequests:   {},
	ResourceEvents:               {},
	ResourceParticipations:       {},
	ResourceAgendaItems:          {},
	ResourceSpeakers:             {},
	ResourceElections:            {},
	ResourceElectionVotes:        {},
	ResourceAmendments:           {},
	ResourceAmendmentVersions:    {},
	ResourceAmendmentCollaborors: {},
	ResourceBlogs:                {},
	ResourceBlogPosts:            {},
	ResourceTodos:                {},
	ResourceTodoAssignments:      {},
	ResourceMessages:             {},
	ResourceMessageThreads:       {},
	ResourceComments:             {},
	ResourceNotifications:        {},
	ResourceUsers:                {},
	ResourceRoles:                {},
	ResourceActionRights:         {},
	ResourceDocuments:            {},
	ResourceFiles:                {},
	ResourceCalendarEntries:      {},
	ResourceInvitations:          {},
	ResourcePolls:                {},
	ResourcePollVotes:            {},
	ResourceSurveys:              {},
	ResourcePages:                {},
	ResourceTags:                 {},
	ResourceLocations:            {},
	ResourceAuditLogs:            {},
}

// IsValid reports whether the resource belongs to the catalog.
func (r Resource) IsValid() bool {
	_, ok := resourceCatalog[r]
	return ok
}

// IsValid reports whether the action belongs to the catalog.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionManage, ActionManageParticipants, ActionManageMembers,
		ActionManageSpeakers, ActionManageVotes, ActionManageRelationships,
		ActionVote, ActionComment, ActionEdit:
		return true
	}
	return false
}

// IsValid reports whether the scope is a known role scope.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeGroup, ScopeEvent, ScopeAmendment, ScopeBlog:
		return true
	}
	return false
}

// Scopes lists all role scopes.
func Scopes() []Scope {
	return []Scope{ScopeGroup, ScopeEvent, ScopeAmendment, ScopeBlog}
}

func (r Resource) String() string { return string(r) }

func (a Action) String() string { return string(a) }

func (s Scope) String() string { return string(s) }
