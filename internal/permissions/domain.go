package permissions

import "time"

// PageSize is fixed for permission listings.
const PageSize = 9

// Permission represents an atomic capability.
type Permission struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput carries the payload for creating a permission.
type CreateInput struct {
	Name string `validate:"required,max=255"`
}

// UpdateInput carries the payload for renaming a permission.
type UpdateInput struct {
	Name string `validate:"required,max=255"`
}
