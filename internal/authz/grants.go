// Package authz decides what a user may do with groups, events, amendments
// and blogs. All grant evaluation is pure and fail-closed: missing slices,
// nil references and unloaded relations yield false, never an error, because
// absent data is the normal case while queries are still loading.
package authz

// HasGroupPermission reports whether any active membership in groupID carries
// a role with an action right matching (resource, action) bound to that same
// group. The right's own group id is compared, not just the membership's.
func HasGroupPermission(memberships []Membership, groupID string, resource Resource, action Action) bool {
	if groupID == "" {
		return false
	}
	for _, m := range memberships {
		if m.Group == nil || m.Group.ID != groupID || !m.grantsRoles() {
			continue
		}
		for _, role := range m.Group.Roles {
			for _, right := range role.ActionRights {
				if right.Resource == resource && right.Action == action && right.GroupID() == groupID {
					return true
				}
			}
		}
	}
	return false
}

// GroupPermissions returns every action right granted to the user in groupID,
// for callers that enumerate capabilities instead of testing one.
func GroupPermissions(memberships []Membership, groupID string) []ActionRight {
	var rights []ActionRight
	for _, m := range memberships {
		if m.Group == nil || m.Group.ID != groupID || !m.grantsRoles() {
			continue
		}
		for _, role := range m.Group.Roles {
			for _, right := range role.ActionRights {
				if right.GroupID() == groupID {
					rights = append(rights, right)
				}
			}
		}
	}
	return rights
}

// HasEventPermission reports whether a participation in eventID carries the
// single assigned role with a right matching (resource, action) bound to that
// event.
func HasEventPermission(participations []Participation, eventID string, resource Resource, action Action) bool {
	if eventID == "" {
		return false
	}
	for _, p := range participations {
		if p.Event == nil || p.Event.ID != eventID || p.Role == nil {
			continue
		}
		for _, right := range p.Role.ActionRights {
			if right.Resource == resource && right.Action == action && right.EventID() == eventID {
				return true
			}
		}
	}
	return false
}

// EventPermissions returns the action rights held through participations in
// eventID.
func EventPermissions(participations []Participation, eventID string) []ActionRight {
	var rights []ActionRight
	for _, p := range participations {
		if p.Event == nil || p.Event.ID != eventID || p.Role == nil {
			continue
		}
		for _, right := range p.Role.ActionRights {
			if right.EventID() == eventID {
				rights = append(rights, right)
			}
		}
	}
	return rights
}

// HasAmendmentPermission resolves the user's collaboration on the amendment,
// matches its role BY NAME against the amendment's roles, and checks that
// role's rights for (resource, action) bound to the amendment. A missing
// collaboration, an unresolved name or empty rights all yield false.
func HasAmendmentPermission(amendment *Amendment, userID string, resource Resource, action Action) bool {
	role := collaboratorRole(amendment, userID)
	if role == nil {
		return false
	}
	for _, right := range role.ActionRights {
		if right.Resource == resource && right.Action == action && right.AmendmentID() == amendment.ID {
			return true
		}
	}
	return false
}

// AmendmentPermissions returns the rights the user holds on the amendment
// through its named-role collaboration.
func AmendmentPermissions(amendment *Amendment, userID string) []ActionRight {
	role := collaboratorRole(amendment, userID)
	if role == nil {
		return nil
	}
	var rights []ActionRight
	for _, right := range role.ActionRights {
		if right.AmendmentID() == amendment.ID {
			rights = append(rights, right)
		}
	}
	return rights
}

func collaboratorRole(amendment *Amendment, userID string) *Role {
	if amendment == nil || userID == "" {
		return nil
	}
	var roleName string
	for _, c := range amendment.RoleCollaborators {
		if c.User != nil && c.User.ID == userID {
			roleName = c.Role
			break
		}
	}
	if roleName == "" {
		return nil
	}
	for i := range amendment.Roles {
		if amendment.Roles[i].Name == roleName {
			return &amendment.Roles[i]
		}
	}
	return nil
}

// HasBlogPermission mirrors HasAmendmentPermission for blog-scoped roles.
func HasBlogPermission(blog *Blog, userID string, resource Resource, action Action) bool {
	role := blogCollaboratorRole(blog, userID)
	if role == nil {
		return false
	}
	for _, right := range role.ActionRights {
		if right.Resource == resource && right.Action == action && right.BlogID() == blog.ID {
			return true
		}
	}
	return false
}

func blogCollaboratorRole(blog *Blog, userID string) *Role {
	if blog == nil || userID == "" {
		return nil
	}
	var roleName string
	for _, c := range blog.RoleCollaborators {
		if c.User != nil && c.User.ID == userID {
			roleName = c.Role
			break
		}
	}
	if roleName == "" {
		return nil
	}
	for i := range blog.Roles {
		if blog.Roles[i].Name == roleName {
			return &blog.Roles[i]
		}
	}
	return nil
}

// HasPermission is the composite entry point: it ORs the group, event and
// amendment checks, each consulted only when its scope argument is provided.
func HasPermission(memberships []Membership, participations []Participation, amendment *Amendment, userID, groupID, eventID string, resource Resource, action Action) bool {
	if groupID != "" && HasGroupPermission(memberships, groupID, resource, action) {
		return true
	}
	if eventID != "" && HasEventPermission(participations, eventID, resource, action) {
		return true
	}
	if amendment != nil && HasAmendmentPermission(amendment, userID, resource, action) {
		return true
	}
	return false
}

// IsGroupMember reports whether the user holds an active membership in the
// group, regardless of what the group's roles grant.
func IsGroupMember(memberships []Membership, groupID string) bool {
	for _, m := range memberships {
		if m.Group != nil && m.Group.ID == groupID && m.grantsRoles() {
			return true
		}
	}
	return false
}

// HasGroupMembership reports whether any membership record exists for the
// group, including invited/requested ones. Coarser than IsGroupMember.
func HasGroupMembership(memberships []Membership, groupID string) bool {
	for _, m := range memberships {
		if m.Group != nil && m.Group.ID == groupID {
			return true
		}
	}
	return false
}

// HasGroupRole reports whether the group defines a role with the given name
// and the user is an active member. Membership grants through all group
// roles, so defining the role is what matters.
func HasGroupRole(memberships []Membership, groupID, roleName string) bool {
	for _, m := range memberships {
		if m.Group == nil || m.Group.ID != groupID || !m.grantsRoles() {
			continue
		}
		for _, role := range m.Group.Roles {
			if role.Name == roleName {
				return true
			}
		}
	}
	return false
}

// IsEventParticipant reports whether the user participates in the event.
func IsEventParticipant(participations []Participation, eventID string) bool {
	for _, p := range participations {
		if p.Event != nil && p.Event.ID == eventID {
			return true
		}
	}
	return false
}

// HasEventRole reports whether the user participates in the event with a role
// of the given name.
func HasEventRole(participations []Participation, eventID, roleName string) bool {
	for _, p := range participations {
		if p.Event != nil && p.Event.ID == eventID && p.Role != nil && p.Role.Name == roleName {
			return true
		}
	}
	return false
}
