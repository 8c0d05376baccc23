package events

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// Event is a scheduled gathering owned by a group.
type Event struct {
	ID          string
	GroupID     string
	Name        string
	Description string
	Location    string
	Visibility  authz.Visibility
	OwnerID     string
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Participation puts a user on an event's roster, optionally with an assigned
// role and an admin flag that makes every co-participant a roster admin.
type Participation struct {
	ID        string
	EventID   string
	UserID    string
	Status    authz.ParticipantStatus
	RoleID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgendaItem is one slot of an event's programme.
type AgendaItem struct {
	ID          string
	EventID     string
	Title       string
	Description string
	Position    int
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Speaker presents one or more agenda items. UserID is set when the speaker
// has an account; external speakers only carry a display name.
type Speaker struct {
	ID           string
	EventID      string
	AgendaItemID string
	UserID       string
	Name         string
	Bio          string
	CreatedAt    time.Time
}

// Election is a vote held during an event. Votes are only accepted while the
// state is open.
type Election struct {
	ID        string
	EventID   string
	GroupID   string
	Question  string
	State     authz.ElectionState
	OpensAt   time.Time
	ClosesAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ElectionOption is one selectable answer of an election.
type ElectionOption struct {
	ID         string
	ElectionID string
	Label      string
	Position   int
}

// Vote records one voter's choice. A voter gets at most one vote per
// election, enforced by a unique constraint.
type Vote struct {
	ID         string
	ElectionID string
	OptionID   string
	VoterID    string
	CreatedAt  time.Time
}

// TallyRow is one option's vote count.
type TallyRow struct {
	OptionID string
	Label    string
	Count    int
}

// CreateEventInput describes a new event.
type CreateEventInput struct {
	GroupID     string
	Name        string
	Description string
	Location    string
	Visibility  authz.Visibility
	OwnerID     string
	StartsAt    time.Time
	EndsAt      time.Time
}

// UpdateEventInput carries editable event fields.
type UpdateEventInput struct {
	Name        string
	Description string
	Location    string
	Visibility  authz.Visibility
	StartsAt    time.Time
	EndsAt      time.Time
}

// AgendaItemInput describes a new or updated agenda item.
type AgendaItemInput struct {
	Title       string
	Description string
	Position    int
	StartsAt    time.Time
	EndsAt      time.Time
}

// SpeakerInput describes a new speaker.
type SpeakerInput struct {
	AgendaItemID string
	UserID       string
	Name         string
	Bio          string
}

// CreateElectionInput describes a new election with its options.
type CreateElectionInput struct {
	Question string
	Options  []string
	OpensAt  time.Time
	ClosesAt time.Time
}
