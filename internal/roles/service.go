package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

var formNames = map[string]string{"Name": "name"}

var messages = shared.FieldMessages{
	"Name.required": "The role name is required.",
	"Name.max":      "The role name may not be greater than 255 characters.",
}

// EditData aggregates what the role edit screen needs: the role itself
// and the full list of assignable permissions.
type EditData struct {
	Role           Role
	AllPermissions []Permission
}

// Service orchestrates role CRUD. Authorization runs before anything
// touches the store; create/update with a permission set is atomic.
type Service struct {
	guard    rbac.Guard
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(guard rbac.Guard, repo Repository) *Service {
	return &Service{guard: guard, repo: repo, validate: validator.New()}
}

// List returns a page of roles matching the query, permission sets loaded.
func (s *Service) List(ctx context.Context, actor shared.Actor, q shared.ListQuery) ([]Role, shared.Pagination, error) {
	if err := s.authorize(ctx, actor, shared.PermViewRoles); err != nil {
		return nil, shared.Pagination{}, err
	}
	q = q.Normalize()
	roles, total, err := s.repo.List(ctx, strings.TrimSpace(q.Search), PageSize, (q.Page-1)*PageSize)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return roles, shared.NewPagination(q.Page, PageSize, total), nil
}

// Get fetches a role with its permission set.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Role, error) {
	if err := s.authorize(ctx, actor, shared.PermViewRoles); err != nil {
		return Role{}, err
	}
	return s.repo.Get(ctx, id)
}

// CreateData returns the assignable permissions for the create screen.
func (s *Service) CreateData(ctx context.Context, actor shared.Actor) ([]Permission, error) {
	if err := s.authorize(ctx, actor, shared.PermCreateRoles); err != nil {
		return nil, err
	}
	return s.repo.AllPermissions(ctx)
}

// EditData returns the role plus the assignable permissions.
func (s *Service) EditData(ctx context.Context, actor shared.Actor, id int64) (EditData, error) {
	if err := s.authorize(ctx, actor, shared.PermEditRoles); err != nil {
		return EditData{}, err
	}
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return EditData{}, err
	}
	all, err := s.repo.AllPermissions(ctx)
	if err != nil {
		return EditData{}, err
	}
	return EditData{Role: role, AllPermissions: all}, nil
}

// Create validates and persists a new role. When a permission set is
// supplied the role and its assignments are written in one transaction.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Role, error) {
	if err := s.authorize(ctx, actor, shared.PermCreateRoles); err != nil {
		return Role{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if verr := s.validateInput(ctx, input.Name, 0, input.Permissions); verr != nil {
		return Role{}, verr
	}

	var role Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err := repo.Create(ctx, input.Name)
		if err != nil {
			return err
		}
		if input.Permissions != nil {
			if err := repo.ReplacePermissions(ctx, created.ID, *input.Permissions); err != nil {
				return err
			}
		}
		role, err = repo.Get(ctx, created.ID)
		return err
	})
	if err != nil {
		return Role{}, s.translateConflict(err)
	}
	return role, nil
}

// Update renames a role and, when the permissions field is present,
// replaces its permission set wholesale. A nil field leaves the set
// untouched; an empty set clears it.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Role, error) {
	if err := s.authorize(ctx, actor, shared.PermEditRoles); err != nil {
		return Role{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if verr := s.validateInput(ctx, input.Name, id, input.Permissions); verr != nil {
		return Role{}, verr
	}

	var role Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		updated, err := repo.Update(ctx, id, input.Name)
		if err != nil {
			return err
		}
		if input.Permissions != nil {
			if err := repo.ReplacePermissions(ctx, updated.ID, *input.Permissions); err != nil {
				return err
			}
		}
		role, err = repo.Get(ctx, updated.ID)
		return err
	})
	if err != nil {
		return Role{}, s.translateConflict(err)
	}
	return role, nil
}

// Delete removes a role and every membership that references it.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.authorize(ctx, actor, shared.PermDeleteRoles); err != nil {
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

func (s *Service) validateInput(ctx context.Context, name string, selfID int64, permissionIDs *[]int64) error {
	ve := shared.NewValidationError()
	if err := s.validate.Struct(CreateInput{Name: name}); err != nil {
		shared.CollectValidatorErrors(ve, err, formNames, messages)
	}
	if name != "" {
		existing, err := s.repo.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != selfID {
			ve.Add("name", "A role with this name already exists.")
		}
	}
	if permissionIDs != nil && len(*permissionIDs) > 0 {
		known, err := s.repo.ExistingPermissionIDs(ctx, *permissionIDs)
		if err != nil {
			return err
		}
		for _, id := range *permissionIDs {
			if _, ok := known[id]; !ok {
				ve.Add("permissions", "One or more selected permissions do not exist.")
				break
			}
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
		ve.Add("name", "A role with this name already exists.")
		return ve
	}
	return err
}
