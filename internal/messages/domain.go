package messages

import "time"

// Thread is a private conversation between its participants.
type Thread struct {
	ID        string
	Subject   string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a thread.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// CreateThreadInput describes a new thread with its first message.
type CreateThreadInput struct {
	Subject      string
	CreatedBy    string
	Participants []string
	Body         string
}
