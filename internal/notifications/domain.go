package notifications

import "time"

// Notification kinds.
const (
	KindAssignment     = "todo_assignment"
	KindMessage        = "message"
	KindInvitation     = "group_invitation"
	KindRoleGranted    = "role_granted"
	KindElectionOpened = "election_opened"
	KindAmendmentEdit  = "amendment_changed"
	KindDigest         = "digest"
)

// Notification is one entry in a user's inbox. A zero ReadAt means unread.
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Subject   string
	Body      string
	ReadAt    time.Time
	CreatedAt time.Time
}

// CreateInput describes a new notification.
type CreateInput struct {
	UserID  string
	Kind    string
	Subject string
	Body    string
}
