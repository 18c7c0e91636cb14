package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

var formNames = map[string]string{
	"Name":            "name",
	"Email":           "email",
	"Password":        "password",
	"PasswordConfirm": "password",
}

var messages = shared.FieldMessages{
	"Name.required":           "The user name is required.",
	"Name.max":                "The user name may not be greater than 255 characters.",
	"Email.required":          "The email address is required.",
	"Email.email":             "The email must be a valid email address.",
	"Email.max":               "The email may not be greater than 255 characters.",
	"Password.min":            "The password must be at least 8 characters.",
	"PasswordConfirm.eqfield": "The password confirmation does not match.",
}

// Service lets authenticated users read and edit their own account.
type Service struct {
	guard    rbac.Guard
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(guard rbac.Guard, repo Repository) *Service {
	return &Service{guard: guard, repo: repo, validate: validator.New()}
}

// Get returns the actor's own profile.
func (s *Service) Get(ctx context.Context, actor shared.Actor) (Profile, error) {
	if err := s.authorize(ctx, actor, shared.PermViewProfile); err != nil {
		return Profile{}, err
	}
	return s.repo.Get(ctx, actor.UserID)
}

// Update edits the actor's own name and email, and replaces the
// credential when a new password is supplied.
func (s *Service) Update(ctx context.Context, actor shared.Actor, input UpdateInput) (Profile, error) {
	if err := s.authorize(ctx, actor, shared.PermEditProfile); err != nil {
		return Profile{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validateInput(ctx, actor.UserID, input); err != nil {
		return Profile{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, actor.UserID, input.Name, input.Email); err != nil {
			return err
		}
		if input.Password == "" {
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		return repo.UpdatePassword(ctx, actor.UserID, string(hash))
	})
	if err != nil {
		return Profile{}, s.translateConflict(err)
	}
	return s.repo.Get(ctx, actor.UserID)
}

func (s *Service) authorize(ctx context.Context, actor shared.Actor, permission string) error {
	ok, err := s.guard.Has(ctx, actor, permission)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) validateInput(ctx context.Context, selfID int64, input UpdateInput) error {
	ve := shared.NewValidationError()
	if err := s.validate.Struct(input); err != nil {
		shared.CollectValidatorErrors(ve, err, formNames, messages)
	}
	if input.Email != "" {
		ownerID, err := s.repo.FindIDByEmail(ctx, input.Email)
		if err != nil {
			return err
		}
		if ownerID != 0 && ownerID != selfID {
			ve.Add("email", "A user with this email already exists.")
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func (s *Service) translateConflict(err error) error {
	if errors.Is(err, shared.ErrConflict) {
		ve := shared.NewValidationError()
		ve.Add("email", "A user with this email already exists.")
		return ve
	}
	return err
}
