package roles

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Role represents a stored role definition bound to one scope instance.
type Role struct {
	ID          string
	Name        string
	Description string
	Scope       authz.Scope
	GroupID     string
	EventID     string
	AmendmentID string
	BlogID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScopeID returns the id of the scope instance owning the role.
func (r Role) ScopeID() string {
	switch r.Scope {
	case authz.ScopeGroup:
		return r.GroupID
	case authz.ScopeEvent:
		return r.EventID
	case authz.ScopeAmendment:
		return r.AmendmentID
	case authz.ScopeBlog:
		return r.BlogID
	}
	return ""
}

// ActionRight is one stored permission row attached to a role.
type ActionRight struct {
	ID          string
	RoleID      string
	Resource    authz.Resource
	Action      authz.Action
	GroupID     string
	EventID     string
	AmendmentID string
	BlogID      string
	CreatedAt   time.Time
}

// CreateRoleInput describes a new role. Exactly one scope id must be set.
type CreateRoleInput struct {
	Name        string
	Description string
	GroupID     string
	EventID     string
	AmendmentID string
	BlogID      string
}

// CreateRightInput describes a new action right for a role.
type CreateRightInput struct {
	Resource authz.Resource
	Action   authz.Action
}
