package permissions

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
	"Name.required": "The permission name is required.",
	"Name.max":      "The permission name may not be greater than 255 characters.",
}

// Service orchestrates permission CRUD: authorization first, then
// validation, then persistence. A denied actor causes no store access.
type Service struct {
	guard    rbac.Guard
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(guard rbac.Guard, repo Repository) *Service {
	return &Service{guard: guard, repo: repo, validate: validator.New()}
}

// List returns a page of permissions matching the query.
func (s *Service) List(ctx context.Context, actor shared.Actor, q shared.ListQuery) ([]Permission, shared.Pagination, error) {
	if err := s.authorize(ctx, actor, shared.PermViewPermissions); err != nil {
		return nil, shared.Pagination{}, err
	}
	q = q.Normalize()
	perms, total, err := s.repo.List(ctx, strings.TrimSpace(q.Search), PageSize, (q.Page-1)*PageSize)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return perms, shared.NewPagination(q.Page, PageSize, total), nil
}

// Get fetches a single permission.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Permission, error) {
	if err := s.authorize(ctx, actor, shared.PermViewPermissions); err != nil {
		return Permission{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create validates and persists a new permission.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Permission, error) {
	if err := s.authorize(ctx, actor, shared.PermCreatePermissions); err != nil {
		return Permission{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if verr := s.validateName(ctx, input.Name, 0); verr != nil {
		return Permission{}, verr
	}
	perm, err := s.repo.Create(ctx, input.Name)
	if err != nil {
		return Permission{}, s.translateConflict(err)
	}
	return perm, nil
}

// Update renames an existing permission.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Permission, error) {
	if err := s.authorize(ctx, actor, shared.PermEditPermissions); err != nil {
		return Permission{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if verr := s.validateName(ctx, input.Name, id); verr != nil {
		return Permission{}, verr
	}
	perm, err := s.repo.Update(ctx, id, input.Name)
	if err != nil {
		return Permission{}, s.translateConflict(err)
	}
	return perm, nil
}

// Delete removes a permission and its role assignments.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.authorize(ctx, actor, shared.PermDeletePermissions); err != nil {
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

// validateName collects every field failure before returning. selfID
// excludes the record being updated from the uniqueness check.
func (s *Service) validateName(ctx context.Context, name string, selfID int64) error {
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
			ve.Add("name", "A permission with this name already exists.")
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// translateConflict converts a store-level unique violation, a race the
// validation pass could not see, into the same shape as a failed
// uniqueness validation.
func (s *Service) translateConflict(err error) error {
	if errors.Is(err, shared.ErrConflict) {
		ve := shared.NewValidationError()
		ve.Add("name", "A permission with this name already exists.")
		return ve
	}
	return err
}
