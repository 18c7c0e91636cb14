package users

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
	"Name.required":          "The user name is required.",
	"Name.max":               "The user name may not be greater than 255 characters.",
	"Email.required":         "The email address is required.",
	"Email.email":            "The email must be a valid email address.",
	"Email.max":              "The email may not be greater than 255 characters.",
	"Password.required":      "The password is required.",
	"Password.min":           "The password must be at least 8 characters.",
	"PasswordConfirm.eqfield": "The password confirmation does not match.",
}

// EditData aggregates what the user edit screen needs: the user itself
// and the full list of assignable roles.
type EditData struct {
	User     User
	AllRoles []Role
}

// Service orchestrates user CRUD. Authorization runs before anything
// touches the store; passwords are hashed here and only replaced when a
// new one is supplied.
type Service struct {
	guard    rbac.Guard
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(guard rbac.Guard, repo Repository) *Service {
	return &Service{guard: guard, repo: repo, validate: validator.New()}
}

// List returns a page of users matching the query, role sets loaded.
func (s *Service) List(ctx context.Context, actor shared.Actor, q shared.ListQuery) ([]User, shared.Pagination, error) {
	if err := s.authorize(ctx, actor, shared.PermViewUsers); err != nil {
		return nil, shared.Pagination{}, err
	}
	q = q.Normalize()
	users, total, err := s.repo.List(ctx, strings.TrimSpace(q.Search), PageSize, (q.Page-1)*PageSize)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(q.Page, PageSize, total), nil
}

// Get fetches a user with their role set.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (User, error) {
	if err := s.authorize(ctx, actor, shared.PermViewUsers); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// CreateData returns the assignable roles for the create screen.
func (s *Service) CreateData(ctx context.Context, actor shared.Actor) ([]Role, error) {
	if err := s.authorize(ctx, actor, shared.PermCreateUsers); err != nil {
		return nil, err
	}
	return s.repo.AllRoles(ctx)
}

// EditData returns the user plus the assignable roles.
func (s *Service) EditData(ctx context.Context, actor shared.Actor, id int64) (EditData, error) {
	if err := s.authorize(ctx, actor, shared.PermEditUsers); err != nil {
		return EditData{}, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return EditData{}, err
	}
	all, err := s.repo.AllRoles(ctx)
	if err != nil {
		return EditData{}, err
	}
	return EditData{User: user, AllRoles: all}, nil
}

// Create validates and persists a new user. When a role set is supplied
// the user and their assignments are written in one transaction.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (User, error) {
	if err := s.authorize(ctx, actor, shared.PermCreateUsers); err != nil {
		return User{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if verr := s.validateCreate(ctx, input); verr != nil {
		return User{}, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	var user User
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err := repo.Create(ctx, input.Name, input.Email, string(hash))
		if err != nil {
			return err
		}
		if input.Roles != nil {
			if err := repo.ReplaceRoles(ctx, created.ID, *input.Roles); err != nil {
				return err
			}
		}
		user, err = repo.Get(ctx, created.ID)
		return err
	})
	if err != nil {
		return User{}, s.translateConflict(err)
	}
	return user, nil
}

// Update applies only the fields present: name and email always, the
// credential only when a non-empty password is supplied, the role set
// only when the roles field is present.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (User, error) {
	if err := s.authorize(ctx, actor, shared.PermEditUsers); err != nil {
		return User{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if verr := s.validateUpdate(ctx, id, input); verr != nil {
		return User{}, verr
	}

	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		updated, err := repo.Update(ctx, id, input.Name, input.Email)
		if err != nil {
			return err
		}
		if input.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			if err := repo.UpdatePassword(ctx, updated.ID, string(hash)); err != nil {
				return err
			}
		}
		if input.Roles != nil {
			if err := repo.ReplaceRoles(ctx, updated.ID, *input.Roles); err != nil {
				return err
			}
		}
		user, err = repo.Get(ctx, updated.ID)
		return err
	})
	if err != nil {
		return User{}, s.translateConflict(err)
	}
	return user, nil
}

// Delete removes a user and all their role assignments.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.authorize(ctx, actor, shared.PermDeleteUsers); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
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

func (s *Service) validateCreate(ctx context.Context, input CreateInput) error {
	ve := shared.NewValidationError()
	if err := s.validate.Struct(input); err != nil {
		shared.CollectValidatorErrors(ve, err, formNames, messages)
	}
	if err := s.checkEmailUnique(ctx, ve, input.Email, 0); err != nil {
		return err
	}
	if err := s.checkRolesExist(ctx, ve, input.Roles); err != nil {
		return err
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func (s *Service) validateUpdate(ctx context.Context, selfID int64, input UpdateInput) error {
	ve := shared.NewValidationError()
	if err := s.validate.Struct(input); err != nil {
		shared.CollectValidatorErrors(ve, err, formNames, messages)
	}
	if input.Password != "" && input.Password != input.PasswordConfirm {
		ve.Add("password", "The password confirmation does not match.")
	}
	if err := s.checkEmailUnique(ctx, ve, input.Email, selfID); err != nil {
		return err
	}
	if err := s.checkRolesExist(ctx, ve, input.Roles); err != nil {
		return err
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func (s *Service) checkEmailUnique(ctx context.Context, ve *shared.ValidationError, email string, selfID int64) error {
	if email == "" {
		return nil
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		ve.Add("email", "A user with this email already exists.")
	}
	return nil
}

func (s *Service) checkRolesExist(ctx context.Context, ve *shared.ValidationError, roleIDs *[]int64) error {
	if roleIDs == nil || len(*roleIDs) == 0 {
		return nil
	}
	known, err := s.repo.ExistingRoleIDs(ctx, *roleIDs)
	if err != nil {
		return err
	}
	for _, id := range *roleIDs {
		if _, ok := known[id]; !ok {
			ve.Add("roles", "One or more selected roles do not exist.")
			break
		}
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
