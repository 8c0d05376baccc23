package todos

import (
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

// TodoStatus tracks completion.
type TodoStatus string

const (
	TodoOpen TodoStatus = "open"
	TodoDone TodoStatus = "done"
)

// Todo is a task tracked within a group.
type Todo struct {
	ID          string
	GroupID     string
	Title       string
	Description string
	Status      TodoStatus
	Visibility  authz.Visibility
	OwnerID     string
	DueAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment hands a todo to a user.
type Assignment struct {
	ID         string
	TodoID     string
	UserID     string
	AssignedBy string
	CreatedAt  time.Time
}

// CreateTodoInput describes a new todo.
type CreateTodoInput struct {
	GroupID     string
	Title       string
	Description string
	Visibility  authz.Visibility
	OwnerID     string
	DueAt       time.Time
}

// UpdateTodoInput carries editable todo fields.
type UpdateTodoInput struct {
	Title       string
	Description string
	Status      TodoStatus
	Visibility  authz.Visibility
	DueAt       time.Time
}
