package users

import "time"

// PageSize is fixed for user listings.
const PageSize = 9

// User represents a managed account. PasswordHash is never rendered.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Roles        []Role
}

// Role is a role as attached to a user.
type Role struct {
	ID   int64
	Name string
}

// CreateInput carries the payload for creating a user. A nil Roles field
// means none were supplied; an empty non-nil slice means "assign none".
type CreateInput struct {
	Name            string `validate:"required,max=255"`
	Email           string `validate:"required,email,max=255"`
	Password        string `validate:"required,min=8"`
	PasswordConfirm string `validate:"eqfield=Password"`
	Roles           *[]int64
}

// UpdateInput carries the payload for updating a user. Password is
// optional: empty leaves the stored credential untouched. A nil Roles
// field leaves the role set untouched; an empty non-nil slice clears it.
type UpdateInput struct {
	Name            string `validate:"required,max=255"`
	Email           string `validate:"required,email,max=255"`
	Password        string `validate:"omitempty,min=8"`
	PasswordConfirm string
	Roles           *[]int64
}
