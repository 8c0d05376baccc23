package groups

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Group is a community that owns roles, events and memberships.
type Group struct {
	ID          string
	Name        string
	Description string
	Visibility  authz.Visibility
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to a group. Status follows the invite/request
// lifecycle; only active (or legacy blank) memberships grant roles.
type Membership struct {
	ID        string
	GroupID   string
	UserID    string
	Status    authz.MembershipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RelationshipStatus tracks a parent/child link request.
type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipApproved RelationshipStatus = "approved"
	RelationshipDeclined RelationshipStatus = "declined"
)

// Relationship is a parent/child link between two groups. It starts pending
// and becomes effective once approved on the parent side.
type Relationship struct {
	ID            string
	ParentGroupID string
	ChildGroupID  string
	Status        RelationshipStatus
	RequestedBy   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateGroupInput describes a new group.
type CreateGroupInput struct {
	Name        string
	Description string
	Visibility  authz.Visibility
	OwnerID     string
}

// UpdateGroupInput carries editable group fields.
type UpdateGroupInput struct {
	Name        string
	Description string
	Visibility  authz.Visibility
}
