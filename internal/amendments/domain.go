package amendments

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Amendment is a proposed text change debated within a group. Its body is
// versioned; the record carries the latest text.
type Amendment struct {
	ID         string
	GroupID    string
	Title      string
	Body       string
	Visibility authz.Visibility
	OwnerID    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Version is one snapshot of an amendment's body. Numbers start at 1 and
// increase with every edit.
type Version struct {
	ID          string
	AmendmentID string
	Number      int
	Body        string
	AuthorID    string
	Note        string
	CreatedAt   time.Time
}

// Collaborator assigns a user a role on an amendment by role NAME. The name
// is matched against the amendment's own roles when permissions are
// evaluated; a name with no matching role grants nothing.
type Collaborator struct {
	ID          string
	AmendmentID string
	UserID      string
	RoleName    string
	CreatedAt   time.Time
}

// CreateAmendmentInput describes a new amendment.
type CreateAmendmentInput struct {
	GroupID    string
	Title      string
	Body       string
	Visibility authz.Visibility
	OwnerID    string
}

// UpdateAmendmentInput carries editable metadata fields. Body changes go
// through AddVersion.
type UpdateAmendmentInput struct {
	Title      string
	Visibility authz.Visibility
}
