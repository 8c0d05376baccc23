package users

import "time"

// User represents a user account for management and profile views.
type User struct {
	ID        string
	Email     string
	Name      string
	Bio       string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateProfileInput carries the editable profile fields.
type UpdateProfileInput struct {
	Name string
	Bio  string
}
