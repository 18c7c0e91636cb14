package roles

import "time"

// PageSize is fixed for role listings.
const PageSize = 10

// Role represents a named permission grouping.
type Role struct {
	ID          int64
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Permissions []Permission
}

// Permission is a capability as attached to a role.
type Permission struct {
	ID   int64
	Name string
}

// CreateInput carries the payload for creating a role. A nil Permissions
// field means none were supplied; an empty non-nil slice means "grant
// nothing".
type CreateInput struct {
	Name        string `validate:"required,max=255"`
	Permissions *[]int64
}

// UpdateInput carries the payload for updating a role. A nil Permissions
// field leaves the permission set untouched; an empty non-nil slice
// clears it.
type UpdateInput struct {
	Name        string `validate:"required,max=255"`
	Permissions *[]int64
}
