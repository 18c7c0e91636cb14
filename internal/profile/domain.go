package profile

import "time"

// Profile is the signed-in user's own account view.
type Profile struct {
	ID        int64
	Name      string
	Email     string
	Roles     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateInput carries the profile edit form fields. Password is optional;
// when present it replaces the current credential.
type UpdateInput struct {
	Name            string `validate:"required,max=255"`
	Email           string `validate:"required,email,max=255"`
	Password        string `validate:"omitempty,min=8"`
	PasswordConfirm string `validate:"eqfield=Password"`
}
